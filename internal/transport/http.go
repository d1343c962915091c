// Package transport exposes the gateway over HTTP. The primary surface is
// POST /mcp, which carries a full request envelope in the body; a catch-all
// /api/* route lets plain REST clients hit the same adapters without
// wrapping their calls.
package transport

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/smilecloud/smilecloud/internal/gateway"
)

// Handler bridges echo requests into gateway envelopes.
type Handler struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewHandler creates the transport handler.
func NewHandler(gw *gateway.Gateway, logger zerolog.Logger) *Handler {
	return &Handler{gw: gw, logger: logger}
}

// Register mounts the transport routes on the echo instance or group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/mcp", h.handleMCP)
	g.Any("/api/*", h.handleREST)
}

// handleMCP decodes a request envelope from the body, dispatches it, and
// writes the full response envelope back with a mirrored HTTP status.
func (h *Handler) handleMCP(c echo.Context) error {
	var req gateway.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, gateway.Fail(
			http.StatusBadRequest, gateway.CodeInvalidRequestBody,
			"request body is not a valid envelope"))
	}
	if req.Path == "" || req.Method == "" {
		return c.JSON(http.StatusBadRequest, gateway.Fail(
			http.StatusBadRequest, gateway.CodeInvalidRequest,
			"envelope requires path and method"))
	}

	mergeInboundHeaders(&req, c)

	resp := h.gw.Handle(c.Request().Context(), &req)
	return c.JSON(resp.Status, resp)
}

// handleREST maps a plain HTTP request onto the envelope contract so REST
// clients share the same route table and adapters.
func (h *Handler) handleREST(c echo.Context) error {
	req := gateway.Request{
		Path:   c.Request().URL.Path,
		Method: c.Request().Method,
	}

	if c.Request().ContentLength != 0 {
		var body interface{}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, gateway.Fail(
				http.StatusBadRequest, gateway.CodeInvalidRequestBody,
				"request body is not valid JSON"))
		}
		req.Body = body
	}

	for name, values := range c.QueryParams() {
		if req.Query == nil {
			req.Query = make(map[string]string)
		}
		if len(values) > 0 {
			req.Query[name] = values[0]
		}
	}

	mergeInboundHeaders(&req, c)

	resp := h.gw.Handle(c.Request().Context(), &req)
	return c.JSON(resp.Status, resp)
}

// mergeInboundHeaders copies HTTP headers into the envelope without
// overriding headers the envelope already carries.
func mergeInboundHeaders(req *gateway.Request, c echo.Context) {
	for name, values := range c.Request().Header {
		if len(values) == 0 {
			continue
		}
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		if _, ok := req.Headers[name]; !ok {
			req.Headers[name] = values[0]
		}
	}
}
