package mux

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soheilhy/cmux"

	"browserctl/internal/config"
	"browserctl/internal/controlplane"
	"browserctl/internal/grpc/server"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
)

// Multiplexer handles protocol detection and routing between gRPC and HTTP
// on a single listening port.
type Multiplexer struct {
	cfg    *config.Config
	svc    controlplane.Service
	logger types.Logger

	grpcServer *server.Server
	httpServer *http.Server

	mux      cmux.CMux
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMultiplexer creates a new protocol multiplexer serving httpHandler over
// HTTP/1 and the control plane's gRPC service over HTTP/2.
func NewMultiplexer(cfg *config.Config, svc controlplane.Service, httpHandler http.Handler) *Multiplexer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Multiplexer{
		cfg:    cfg,
		svc:    svc,
		logger: logging.GetGlobalLogger(),
		ctx:    ctx,
		cancel: cancel,
		httpServer: &http.Server{
			Handler:           httpHandler,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start starts the multiplexer and both servers.
func (m *Multiplexer) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	m.listener = listener

	m.mux = cmux.New(listener)

	grpcListener := m.mux.Match(cmux.HTTP2HeaderField("content-type", "application/grpc"))
	httpListener := m.mux.Match(cmux.HTTP1Fast())

	m.grpcServer = server.NewServer(m.cfg, m.svc)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logger.Info("starting grpc server", map[string]interface{}{"address": address})
		if err := m.grpcServer.Start(grpcListener); err != nil {
			m.logger.Error("grpc server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logger.Info("starting http server", map[string]interface{}{"address": address})
		if err := m.httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			m.logger.Error("http server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logger.Info("starting protocol multiplexer", map[string]interface{}{"address": address})
		if err := m.mux.Serve(); err != nil {
			m.logger.Error("multiplexer failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	m.logger.Info("multiplexer started", map[string]interface{}{"address": address})
	return nil
}

// Stop gracefully shuts down the multiplexer and both servers.
func (m *Multiplexer) Stop() error {
	m.logger.Info("stopping multiplexer")

	m.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := m.httpServer.Shutdown(shutdownCtx); err != nil {
		m.logger.Error("http server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	if m.grpcServer != nil {
		m.grpcServer.Stop()
	}

	if m.listener != nil {
		if err := m.listener.Close(); err != nil {
			m.logger.Error("failed to close listener", map[string]interface{}{"error": err.Error()})
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("multiplexer stopped gracefully")
	case <-shutdownCtx.Done():
		m.logger.Warn("multiplexer shutdown timed out")
	}

	return nil
}

// Wait blocks until the multiplexer's goroutines finish.
func (m *Multiplexer) Wait() {
	m.wg.Wait()
}

// IsHealthy reports whether the multiplexer and its listener are still live.
func (m *Multiplexer) IsHealthy() bool {
	if m.ctx.Err() != nil {
		return false
	}
	return m.listener != nil
}

func (m *Multiplexer) GetGRPCServer() *server.Server { return m.grpcServer }
func (m *Multiplexer) GetHTTPServer() *http.Server    { return m.httpServer }
func (m *Multiplexer) GetListener() net.Listener      { return m.listener }

func (m *Multiplexer) GetAddress() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return ""
}
