package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/garyrob/weightd"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		logger.Fatal(err)
	}

	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		logger.Fatal(err)
	}
	logger.SetLevel(level)

	cfg, err := buildConfig(opts, logger)
	if err != nil {
		logger.Fatal(err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	srv := weightd.NewServer(cfg)
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal(err)
	}

	<-shutdown
	srv.Stop()
}
