package nexhealth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smilecloud/smilecloud/internal/gateway"
)

// Adapter exposes the upstream API through the gateway envelope at
// /api/nexhealth/{endpoint}. Reads pass query parameters through; writes
// forward the envelope body.
type Adapter struct {
	client *Client
	logger zerolog.Logger
}

// NewAdapter wraps a client.
func NewAdapter(client *Client, logger zerolog.Logger) *Adapter {
	return &Adapter{client: client, logger: logger}
}

const routePrefix = "/api/nexhealth/"

// Handle implements gateway.Adapter.
func (a *Adapter) Handle(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	endpoint := strings.Trim(strings.TrimPrefix(req.Path, routePrefix), "/")
	if endpoint == "" || strings.HasPrefix(endpoint, "/") {
		return gateway.BadRequest("missing nexhealth endpoint in path"), nil
	}

	switch req.Method {
	case http.MethodGet:
		query := url.Values{}
		for k, v := range req.Query {
			query.Set(k, v)
		}
		raw, err := a.client.Get(ctx, endpoint, query)
		if err != nil {
			return ErrorResponse(err), nil
		}
		return gateway.OK(http.StatusOK, json.RawMessage(raw)), nil

	case http.MethodPost:
		raw, err := a.client.Post(ctx, endpoint, req.Body)
		if err != nil {
			return ErrorResponse(err), nil
		}
		return gateway.OK(http.StatusOK, json.RawMessage(raw)), nil

	default:
		return gateway.BadRequest("method " + req.Method + " not supported for nexhealth endpoints"), nil
	}
}

// ErrorResponse maps a client error onto the envelope error taxonomy.
func ErrorResponse(err error) *gateway.Response {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return gateway.Fail(http.StatusUnauthorized, gateway.CodeAuthError, authErr.Message)
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return gateway.Fail(http.StatusGatewayTimeout, gateway.CodeTimeoutError, timeoutErr.Error())
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return gateway.Fail(http.StatusBadGateway, gateway.CodeNetworkError, netErr.Error())
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return gateway.Fail(apiErr.StatusCode, gateway.CodeAPIError, apiErr.Message)
	}
	return gateway.Fail(http.StatusInternalServerError, gateway.CodeInternalError, err.Error())
}
