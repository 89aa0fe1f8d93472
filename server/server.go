// Package server exposes the dispatch engine over HTTP: a single-shot infer
// endpoint and a server-sent-events stream endpoint. The transport does no
// routing logic of its own; it converts wire requests into core requests,
// hands them to the mesh and maps typed errors onto HTTP status codes.
package server

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/infermesh/infermesh"
	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/logging"
)

// Server adapts a Mesh to HTTP.
type Server struct {
	mesh   *infermesh.Mesh
	logger logging.Logger
}

// New creates a Server over the given mesh.
func New(mesh *infermesh.Mesh, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Server{mesh: mesh, logger: logger}
}

// Register mounts the API routes on the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/infer", s.handleInfer)
	e.POST("/v1/infer/stream", s.handleInferStream)
	e.GET("/v1/runners", s.handleRunners)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleInfer(c *echo.Context) error {
	req, capability, preferred, ok := s.decodeRequest(c)
	if !ok {
		return nil
	}

	res := s.mesh.Process(c.Request().Context(), req, capability, preferred)
	return writeJSON(c, statusFor(res), toWireResult(res))
}

func (s *Server) handleInferStream(c *echo.Context) error {
	req, capability, preferred, ok := s.decodeRequest(c)
	if !ok {
		return nil
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return writeErrorJSON(c, http.StatusInternalServerError,
			core.NewError(core.ErrProcessingError, "streaming unsupported by connection"))
	}

	// The request context is canceled when the client disconnects, which
	// propagates through the engine to the producing runner.
	ctx := c.Request().Context()

	for result := range s.mesh.ProcessStream(ctx, req, capability, preferred) {
		payload, err := json.Marshal(toWireResult(result))
		if err != nil {
			s.logger.Error("encode stream result failed", "error", err)
			return nil
		}
		if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
			// Client went away; the canceled context stops the producer.
			return nil
		}
		flusher.Flush()
	}

	_, _ = fmt.Fprint(res, "data: [DONE]\n\n")
	flusher.Flush()

	return nil
}

func (s *Server) handleRunners(c *echo.Context) error {
	type runnerInfo struct {
		Name         string   `json:"name"`
		Capabilities []string `json:"capabilities"`
		Priority     int      `json:"priority"`
		LoadedModel  string   `json:"loaded_model,omitempty"`
	}

	loaded := s.mesh.Engine().Lifecycle().LoadedModels()

	var infos []runnerInfo
	for _, name := range s.mesh.Registry().Names() {
		reg, ok := s.mesh.Registry().FindByName(name)
		if !ok {
			continue
		}
		caps := make([]string, len(reg.Capabilities))
		for i, rc := range reg.Capabilities {
			caps[i] = string(rc)
		}
		infos = append(infos, runnerInfo{
			Name:         reg.Name,
			Capabilities: caps,
			Priority:     reg.Priority,
			LoadedModel:  loaded[reg.Name],
		})
	}

	return writeJSON(c, http.StatusOK, map[string]any{"runners": infos})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeRequest parses and validates the wire request. On failure it writes
// the 400 response itself and reports ok=false; the handler must not write
// anything further.
func (s *Server) decodeRequest(c *echo.Context) (req *core.Request, capability core.Capability, preferred string, ok bool) {
	var wire inferRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&wire); err != nil {
		s.rejectRequest(c, core.NewError(core.ErrInvalidInput, "invalid request body: %v", err))
		return nil, "", "", false
	}

	capability = core.Capability(wire.Capability)
	if !capability.IsValid() {
		s.rejectRequest(c, core.NewError(core.ErrInvalidInput, "unknown capability %q", wire.Capability))
		return nil, "", "", false
	}

	req, err := wire.toCoreRequest()
	if err != nil {
		s.rejectRequest(c, core.NewError(core.ErrInvalidInput, "%v", err))
		return nil, "", "", false
	}

	return req, capability, wire.Runner, true
}

func (s *Server) rejectRequest(c *echo.Context, e *core.Error) {
	if err := writeErrorJSON(c, http.StatusBadRequest, e); err != nil {
		s.logger.Error("write error response failed", "error", err)
	}
}

// statusFor maps a result's error kind onto an HTTP status code.
func statusFor(res core.Result) int {
	if !res.IsError() {
		return http.StatusOK
	}
	switch res.Error.Kind {
	case core.ErrRunnerNotFound, core.ErrNoRunnerForCapability:
		return http.StatusNotFound
	case core.ErrCapabilityMismatch, core.ErrInvalidInput, core.ErrNotStreamingCapable:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(c *echo.Context, status int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, payload)
}

func writeErrorJSON(c *echo.Context, status int, e *core.Error) error {
	return writeJSON(c, status, map[string]any{"error": e})
}
