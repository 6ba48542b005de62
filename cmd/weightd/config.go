package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/garyrob/weightd"
)

const defaultTotalWeight = 1000000

// optionalWeight is a flag that distinguishes "not given" from zero.
type optionalWeight struct {
	value *uint64
}

func (o *optionalWeight) String() string {
	if o.value == nil {
		return ""
	}
	return strconv.FormatUint(*o.value, 10)
}

func (o *optionalWeight) Set(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	o.value = &v
	return nil
}

type options struct {
	port               int
	genesisHash        string
	protocolVersion    string
	algorithmVersion   string
	latency            float64
	weightFile         string
	totalWeight        uint64
	defaultWeight      optionalWeight
	addressWeightsFile string
	logLevel           string
}

func parseOptions(args []string, output io.Writer) (*options, error) {
	fs := flag.NewFlagSet("weightd", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := &options{}
	fs.IntVar(&opts.port, "port", 0, "TCP port to listen on (required)")
	fs.StringVar(&opts.genesisHash, "genesis-hash", "", "32-byte genesis hash as hex (64 chars) or base64. Default: all zeros")
	fs.StringVar(&opts.protocolVersion, "protocol-version", "1.0", "weight protocol version to report")
	fs.StringVar(&opts.algorithmVersion, "algorithm-version", "1.0", "weight algorithm version to report")
	fs.Float64Var(&opts.latency, "latency", 0, "artificial latency in seconds added to each response")
	fs.StringVar(&opts.weightFile, "weight-file", "", "JSON file containing the weight table")
	fs.Uint64Var(&opts.totalWeight, "total-weight", defaultTotalWeight, "total weight to return")
	fs.Var(&opts.defaultWeight, "default-weight", "if set, return this weight for all queries (bypasses table lookup)")
	fs.StringVar(&opts.addressWeightsFile, "address-weights-file", "", "JSON file mapping addresses to weights")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.port <= 0 || opts.port > 65535 {
		return nil, errors.New("--port is required and must be between 1 and 65535")
	}
	if opts.latency < 0 {
		return nil, errors.New("--latency must not be negative")
	}
	return opts, nil
}

func buildConfig(opts *options, logger *logrus.Logger) (weightd.Config, error) {
	cfg := weightd.Config{
		Port:             opts.port,
		ProtocolVersion:  opts.protocolVersion,
		AlgorithmVersion: opts.algorithmVersion,
		Latency:          time.Duration(opts.latency * float64(time.Second)),
		TotalWeight:      opts.totalWeight,
		DefaultWeight:    opts.defaultWeight.value,
		Logger:           logger,
	}

	if opts.genesisHash != "" {
		h, err := weightd.ParseGenesisHash(opts.genesisHash)
		if err != nil {
			return cfg, err
		}
		cfg.GenesisHash = h
	}

	if opts.weightFile != "" {
		table, err := loadWeightTable(opts.weightFile)
		if err != nil {
			return cfg, fmt.Errorf("error loading weight file: %w", err)
		}
		logger.Infof("loaded %d weights from %s", len(table), opts.weightFile)
		cfg.WeightTable = table
	}

	if opts.addressWeightsFile != "" {
		weights, err := loadAddressWeights(opts.addressWeightsFile)
		if err != nil {
			return cfg, fmt.Errorf("error loading address weights file: %w", err)
		}
		logger.Infof("loaded %d address weights from %s", len(weights), opts.addressWeightsFile)
		cfg.AddressWeights = weights
	}

	return cfg, nil
}

// loadWeightTable reads {"weights": {"address:selection_id:round": weight, ...}}.
func loadWeightTable(path string) (map[string]uint64, error) {
	var file struct {
		Weights map[string]uint64 `json:"weights"`
	}
	if err := readJSON(path, &file); err != nil {
		return nil, err
	}
	if file.Weights == nil {
		return map[string]uint64{}, nil
	}
	return file.Weights, nil
}

// loadAddressWeights reads {"ADDRESS": weight, ...}.
func loadAddressWeights(path string) (map[string]uint64, error) {
	weights := map[string]uint64{}
	if err := readJSON(path, &weights); err != nil {
		return nil, err
	}
	return weights, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
