package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gwuah/steerd/control"
	"github.com/gwuah/steerd/types"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the allow-list and the dedicated socket over HTTP.
type Server struct {
	Config

	// Called with the steered ports after every successful change.
	OnChange func(ports []uint16)

	server *echo.Echo
	ports  control.PortStore
	status StatusFunc
}

func New(c *Config, ports control.PortStore, status StatusFunc) *Server {
	if c == nil {
		c = &DefaultConfig
	}
	return &Server{Config: *c, ports: ports, status: status}
}

func (s *Server) String() string {
	return "api"
}

func (s *Server) Init() error {
	slog.Debug("initialising the api server")

	if addr, err := netip.ParseAddr(s.BindAddress); err == nil && !types.IsLocalOnly(addr) {
		slog.Warn("the unauthenticated api is reachable from the network", "bindAddress", s.BindAddress)
	}

	s.server = echo.New()

	// Prevent the banner from showing up in the log
	s.server.HideBanner = true
	s.server.HidePort = true

	s.server.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&extendedContext{c, s.server.Routes()})
		}
	})

	s.server.GET("/", handleRoot)
	s.server.GET("/healthz", handleHealth)
	s.server.GET("/ports", s.handleListPorts)
	s.server.GET("/ports/:port", s.handleGetPort)
	s.server.PUT("/ports/:port", s.handleAddPort)
	s.server.DELETE("/ports/:port", s.handleRemovePort)
	s.server.GET("/socket", s.handleSocket)

	return nil
}

func (s *Server) Run(done <-chan struct{}) {
	slog.Debug("running the api server")

	addr := net.JoinHostPort(s.BindAddress, strconv.Itoa(int(s.BindPort)))
	go func() {
		if err := s.server.Start(addr); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("couldn't start the API server", "err", err)
		}
	}()

	// Simply wait until we're done
	<-done
	slog.Debug("cleanly exiting the api server")
}

func (s *Server) Cleanup() error {
	slog.Debug("cleaning up the api server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down the API server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be exercised without listening. Only valid
// after Init.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.ServeHTTP(w, r)
}

func (s *Server) changed() {
	if s.OnChange == nil {
		return
	}

	ports, err := s.ports.Ports()
	if err != nil {
		slog.Error("error listing ports after a change", "err", err)
		return
	}
	s.OnChange(ports)
}
