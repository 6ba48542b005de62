package weightd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultHost               = "127.0.0.1"
	defaultVersion            = "1.0"
	defaultGracePeriod        = 3 * time.Second
	defaultAcceptPollInterval = time.Second

	readChunkSize = 4096
)

func NewServer(config Config) Server {
	if config.Host == "" {
		config.Host = defaultHost
	}
	if config.ProtocolVersion == "" {
		config.ProtocolVersion = defaultVersion
	}
	if config.AlgorithmVersion == "" {
		config.AlgorithmVersion = defaultVersion
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = defaultGracePeriod
	}
	if config.AcceptPollInterval <= 0 {
		config.AcceptPollInterval = defaultAcceptPollInterval
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.DefaultWeight != nil {
		w := *config.DefaultWeight
		config.DefaultWeight = &w
	}

	return &server{
		config: config,
		log:    config.Logger,
		store:  newWeightStore(config.WeightTable, config.AddressWeights, config.TotalWeight),
	}
}

// Start binds the listener and accepts connections in the background until
// Stop is called or ctx is cancelled.
func (s *server) Start(ctx context.Context) error {
	if s.listener != nil {
		return fmt.Errorf("weight daemon already started on %s", s.listener.Addr())
	}

	address := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	tcpListener, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("listen on %s: not a TCP listener", address)
	}

	s.listener = tcpListener
	s.loopDone = make(chan struct{})
	s.running.Store(true)

	s.log.WithField("addr", tcpListener.Addr().String()).Info("weight daemon listening")

	go func() {
		select {
		case <-ctx.Done():
			s.closeListener()
		case <-s.loopDone:
		}
	}()

	go s.acceptLoop()
	return nil
}

func (s *server) acceptLoop() {
	defer close(s.loopDone)

	for s.running.Load() {
		// wake up periodically to notice shutdown
		if err := s.listener.SetDeadline(time.Now().Add(s.config.AcceptPollInterval)); err != nil && s.running.Load() {
			s.log.WithError(err).Warn("error setting accept deadline")
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return // shutdown in progress
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.WithError(err).Warn("error accepting connection")
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *server) closeListener() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		if err := s.listener.Close(); err != nil {
			s.log.WithError(err).Warn("error closing listener")
		}
	})
}

// Stop closes the listener and waits up to the grace period for in-flight
// connections. Connections still running after that are left to finish.
func (s *server) Stop() {
	if s.listener == nil {
		return
	}
	s.log.Info("shutting down weight daemon")
	s.closeListener()
	<-s.loopDone

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.config.GracePeriod):
		s.connections.Range(func(key, value interface{}) bool {
			s.log.WithFields(logrus.Fields{"conn": key, "remote": value}).
				Warn("grace period exceeded, connection still in flight")
			return true
		})
	}

	s.log.Info("shutdown complete")
}

func (s *server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *server) SetWeight(address, selectionID, balanceRound string, weight uint64) {
	s.store.setWeight(address, selectionID, balanceRound, weight)
}

func (s *server) SetAddressWeight(address string, weight uint64) {
	s.store.setAddressWeight(address, weight)
}

func (s *server) SetTotalWeight(totalWeight uint64) {
	s.store.setTotal(totalWeight)
}

// handleConnection serves exactly one request and always closes conn.
func (s *server) handleConnection(conn net.Conn) {
	connectionID := uuid.NewString()
	remote := conn.RemoteAddr().String()
	log := s.log.WithFields(logrus.Fields{"conn": connectionID, "remote": remote})

	s.connections.Store(connectionID, remote)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic handling connection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.WithError(err).Debug("error closing connection")
		}
		s.connections.Delete(connectionID)
		s.wg.Done()
	}()

	if s.config.Latency > 0 {
		time.Sleep(s.config.Latency)
	}

	data, err := readMessage(conn)
	if err != nil {
		log.WithError(err).Warn("error reading request")
		return
	}
	if len(data) == 0 {
		return
	}

	out, err := encodeResponse(s.process(data))
	if err != nil {
		log.WithError(err).Error("error encoding response")
		return
	}
	if _, err := conn.Write(out); err != nil {
		log.WithError(err).Warn("error sending response")
	}
}

// readMessage reads until the peer closes or the data seen so far contains a
// '}'. Request bodies are flat objects, so the first '}' is taken as the end
// of the message. A '}' inside a string value truncates the request; this is
// kept as-is because existing clients frame the same way.
func readMessage(r io.Reader) ([]byte, error) {
	var data []byte
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			data = append(data, chunk[:n]...)
			if bytes.IndexByte(chunk[:n], '}') >= 0 {
				return data, nil
			}
		}
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return data, err
		}
	}
}
