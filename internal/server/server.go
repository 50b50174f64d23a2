package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/gateway"
	"github.com/muurk/ledble/internal/logging"
	"github.com/muurk/ledble/internal/transport"
	"github.com/muurk/ledble/internal/version"
)

// Config holds the gateway daemon configuration.
type Config struct {
	Host     string
	Port     int
	Instance string // mDNS instance name (default: host name)

	// CertPath/KeyPath enable TLS when both are set.
	CertPath string
	KeyPath  string

	// Announce controls the mDNS service registration.
	Announce bool

	LogLevel string
}

// Server bridges websocket clients to a BLE radio link.
type Server struct {
	config  *Config
	backend transport.Adapter

	httpServer *http.Server
	mdns       *zeroconf.Server

	mu    sync.Mutex
	links map[string]*deviceLink
	wg    sync.WaitGroup
}

// New creates a gateway daemon that reaches devices through backend.
func New(config *Config, backend transport.Adapter) (*Server, error) {
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if backend == nil {
		return nil, fmt.Errorf("no radio backend configured")
	}
	if config.Port == 0 {
		config.Port = gateway.DefaultPort
	}

	s := &Server{
		config:  config,
		backend: backend,
		links:   make(map[string]*deviceLink),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/device/", s.handleDevice)
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: mux,
	}
	return s, nil
}

// Start runs the daemon and blocks until a shutdown signal or a listener
// error.
func (s *Server) Start() error {
	logging.Info("Starting gateway daemon",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("tls", s.config.CertPath != ""),
		zap.String("log_level", s.config.LogLevel),
	)

	if s.config.Announce {
		if err := s.announce(); err != nil {
			return fmt.Errorf("mDNS registration failed: %w", err)
		}
		logging.Info("Announced mDNS service",
			zap.String("service", gateway.ServiceType),
			zap.String("instance", s.instanceName()),
		)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.CertPath != "" {
			err = s.httpServer.ListenAndServeTLS(s.config.CertPath, s.config.KeyPath)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errChan <- err
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping daemon...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

func (s *Server) instanceName() string {
	if s.config.Instance != "" {
		return s.config.Instance
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "ledble-gw"
	}
	return host
}

func (s *Server) announce() error {
	txt := []string{"version=" + version.Version}
	mdns, err := zeroconf.Register(
		s.instanceName(),
		gateway.ServiceType,
		gateway.ServiceDomain,
		s.config.Port,
		txt,
		nil,
	)
	if err != nil {
		return err
	}
	s.mdns = mdns
	return nil
}

// handleDevice upgrades the request and relays frames between the websocket
// and the device's radio link for the lifetime of the socket.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	macStr := strings.TrimPrefix(r.URL.Path, "/device/")
	mac, err := advertise.ParseMAC(macStr)
	if err != nil {
		http.Error(w, fmt.Sprintf("bad device address %q", macStr), http.StatusBadRequest)
		return
	}

	link, err := newDeviceLink(r.Context(), s.backend, mac.String(), w, r)
	if err != nil {
		logging.Error("Failed to open device link",
			zap.String("device", mac.String()),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.links[link.id] = link
	s.mu.Unlock()
	logging.Info("Device link opened",
		zap.String("device", mac.String()),
		zap.String("remote_addr", r.RemoteAddr),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		link.run()

		s.mu.Lock()
		delete(s.links, link.id)
		s.mu.Unlock()
		logging.Info("Device link closed", zap.String("device", mac.String()))
	}()
}

// ActiveLinks returns the number of open device links.
func (s *Server) ActiveLinks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

// Shutdown stops announcing, closes the listener and tears down open links.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down gateway daemon...")

	if s.mdns != nil {
		s.mdns.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("Error closing listener", zap.Error(err))
	}

	s.mu.Lock()
	for _, link := range s.links {
		link.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All device links closed")
	case <-shutdownCtx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}
