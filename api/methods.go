package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gwuah/steerd/steering"
)

func handleRoot(c echo.Context) error {
	cc := c.(*extendedContext)
	return c.JSONPretty(http.StatusOK, &rootResponse{
		ApiRoutes: cc.apiRoutes,
	}, JSON_PRETTY_INDENT)
}

func handleHealth(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, map[string]string{"status": "ok"}, JSON_PRETTY_INDENT)
}

func fail(c echo.Context, code int, err error) error {
	return c.JSONPretty(code, &errorResponse{Error: err.Error()}, JSON_PRETTY_INDENT)
}

func parsePort(c echo.Context) (uint16, error) {
	port, err := strconv.ParseUint(c.Param("port"), 10, 16)
	if err != nil || port == 0 {
		return 0, steering.ErrInvalidPort
	}
	return uint16(port), nil
}

func (s *Server) handleListPorts(c echo.Context) error {
	ports, err := s.ports.Ports()
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	if ports == nil {
		ports = []uint16{}
	}

	return c.JSONPretty(http.StatusOK, &portsResponse{Ports: ports, Capacity: steering.MaxPorts}, JSON_PRETTY_INDENT)
}

func (s *Server) handleGetPort(c echo.Context) error {
	port, err := parsePort(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}

	if !s.ports.Contains(port) {
		return c.JSONPretty(http.StatusNotFound, &portResponse{Port: port}, JSON_PRETTY_INDENT)
	}
	return c.JSONPretty(http.StatusOK, &portResponse{Port: port, Steered: true}, JSON_PRETTY_INDENT)
}

func (s *Server) handleAddPort(c echo.Context) error {
	port, err := parsePort(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}

	if s.ports.Contains(port) {
		return c.JSONPretty(http.StatusOK, &portResponse{Port: port, Steered: true}, JSON_PRETTY_INDENT)
	}

	if err := s.ports.Add(port); err != nil {
		switch {
		case errors.Is(err, steering.ErrAllowlistFull):
			return fail(c, http.StatusInsufficientStorage, err)
		case errors.Is(err, steering.ErrInvalidPort):
			return fail(c, http.StatusBadRequest, err)
		default:
			return fail(c, http.StatusInternalServerError, err)
		}
	}
	s.changed()

	return c.JSONPretty(http.StatusCreated, &portResponse{Port: port, Steered: true}, JSON_PRETTY_INDENT)
}

func (s *Server) handleRemovePort(c echo.Context) error {
	port, err := parsePort(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}

	if err := s.ports.Remove(port); err != nil {
		if errors.Is(err, steering.ErrPortNotFound) {
			return fail(c, http.StatusNotFound, err)
		}
		return fail(c, http.StatusInternalServerError, err)
	}
	s.changed()

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSocket(c echo.Context) error {
	status, err := s.status()
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	status.Verbosity = c.QueryParam("verbosity")

	return c.JSONPretty(http.StatusOK, &status, JSON_PRETTY_INDENT)
}
