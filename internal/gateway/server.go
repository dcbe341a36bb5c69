// ABOUTME: HTTP server hosting the relay with optional mDNS advertisement
// ABOUTME: Runs standalone or embedded on a loopback port inside the visualizer
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/visual-lock/visuallock/internal/discovery"
	"github.com/visual-lock/visuallock/internal/logger"
)

// Config holds gateway server configuration
type Config struct {
	Addr        string
	Name        string
	Prefix      string
	UpstreamURL string
	WrapErrors  bool
	EnableMDNS  bool
}

// Server hosts the relay
type Server struct {
	config Config
	proxy  *Proxy

	httpServer  *http.Server
	listener    net.Listener
	mdnsManager *discovery.Manager

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

// New creates a gateway server
func New(config Config) *Server {
	if config.Name == "" {
		config.Name = "VISUAL LOCK gateway"
	}
	proxy := NewProxy(ProxyConfig{
		UpstreamURL: config.UpstreamURL,
		Prefix:      config.Prefix,
		WrapErrors:  config.WrapErrors,
	})
	return &Server{
		config:   config,
		proxy:    proxy,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      s.proxy.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.Port(),
			Path:        s.proxy.Prefix(),
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			logger.Warn("Failed to start mDNS advertisement", logger.ErrorField(err))
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	logger.Info("Gateway listening",
		logger.String("addr", ln.Addr().String()),
		logger.String("prefix", s.proxy.Prefix()))

	go s.supervise(errChan)
	return nil
}

func (s *Server) supervise(errChan <-chan error) {
	defer close(s.done)

	var serverErr error
	select {
	case <-s.stopChan:
		logger.Info("Gateway shutting down")
	case err := <-errChan:
		logger.Error("Gateway HTTP server error", logger.ErrorField(err))
		serverErr = err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Gateway shutdown error", logger.ErrorField(err))
	}

	if serverErr != nil {
		s.err = fmt.Errorf("HTTP server failed: %w", serverErr)
	}
}

// Run starts the server and blocks until Stop or a server error
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.Wait()
}

// Wait blocks until the server has shut down
func (s *Server) Wait() error {
	<-s.done
	return s.err
}

// Stop shuts the server down
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Port returns the bound port, 0 before Start
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// BaseURL is the resolver base URL of this gateway
func (s *Server) BaseURL() string {
	if s.listener == nil {
		return ""
	}
	host := "127.0.0.1"
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok && !addr.IP.IsUnspecified() {
		host = addr.IP.String()
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, fmt.Sprint(s.Port())), s.proxy.Prefix())
}
