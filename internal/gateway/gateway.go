package gateway

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"github.com/rs/zerolog"
)

// Adapter is one backing capability behind the envelope contract. An adapter
// that wants fine-grained error codes must map its own failures into the
// response envelope; anything it returns as an error (or panics with) is
// normalized by the gateway into a generic 500.
type Adapter interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, req *Request) (*Response, error)

func (f AdapterFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Gateway resolves request envelopes to registered adapters and guarantees a
// well-formed response envelope for every outcome. Routes are evaluated in
// registration order, first match wins: more specific routes must be
// registered before broader prefix routes that could shadow them.
type Gateway struct {
	routes   []Route
	adapters map[string]Adapter
	logger   zerolog.Logger
}

// New creates an empty gateway.
func New(logger zerolog.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// RegisterAdapter stores an adapter under name, overwriting any prior
// registration. A nil adapter removes the registration, so routes pointing
// at the name degrade to per-request 503s.
func (g *Gateway) RegisterAdapter(name string, a Adapter) {
	if a == nil {
		delete(g.adapters, name)
		return
	}
	g.adapters[name] = a
}

// RegisterRoute appends a route to the table. Method may be "" to match any
// HTTP verb.
func (g *Gateway) RegisterRoute(m Matcher, adapterName, method string) {
	g.routes = append(g.routes, Route{Matcher: m, Adapter: adapterName, Method: method})
}

// Routes returns a copy of the route table in registration order.
func (g *Gateway) Routes() []Route {
	out := make([]Route, len(g.routes))
	copy(out, g.routes)
	return out
}

// AdapterNames returns the names with a live adapter registration.
func (g *Gateway) AdapterNames() []string {
	names := make([]string, 0, len(g.adapters))
	for name := range g.adapters {
		names = append(names, name)
	}
	return names
}

// Handle dispatches a request envelope. It never returns a nil response and
// never lets an adapter error or panic escape to the transport.
func (g *Gateway) Handle(ctx context.Context, req *Request) *Response {
	route, ok := g.resolve(req.Path, req.Method)
	if !ok {
		return Fail(http.StatusNotFound, CodeNotFound,
			fmt.Sprintf("Endpoint %s not found", req.Path))
	}

	adapter, ok := g.adapters[route.Adapter]
	if !ok {
		g.logger.Warn().Str("adapter", route.Adapter).Str("path", req.Path).
			Msg("route matched but adapter is not registered")
		return Fail(http.StatusServiceUnavailable, CodeServiceUnavailable,
			fmt.Sprintf("The service '%s' is currently unavailable.", route.Adapter))
	}

	resp := g.invoke(ctx, adapter, route.Adapter, req)
	if resp == nil {
		// Adapter returned (nil, nil); treat like an internal failure.
		return Fail(http.StatusInternalServerError, CodeInternalError,
			fmt.Sprintf("adapter '%s' returned no response", route.Adapter))
	}
	return resp
}

// resolve scans the route table in registration order and stops at the
// first match.
func (g *Gateway) resolve(path, method string) (Route, bool) {
	for _, r := range g.routes {
		if r.matches(path, method) {
			return r, true
		}
	}
	return Route{}, false
}

// invoke runs the adapter, converting errors and panics into 500 envelopes.
func (g *Gateway) invoke(ctx context.Context, a Adapter, name string, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			g.logger.Error().
				Str("adapter", name).
				Str("path", req.Path).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("panic in adapter")
			resp = FailWithDetails(http.StatusInternalServerError, CodeInternalError,
				fmt.Sprintf("%v", r), string(stack[:n]))
		}
	}()

	resp, err := a.Handle(ctx, req)
	if err != nil {
		g.logger.Error().Err(err).Str("adapter", name).Str("path", req.Path).
			Msg("adapter error")
		return Fail(http.StatusInternalServerError, CodeInternalError, err.Error())
	}
	return resp
}
