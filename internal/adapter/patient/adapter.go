// Package patient serves patient reads from the upstream API with the
// resilience-cache fallback: fresh cache hits skip the network, upstream
// failures degrade to possibly-stale data instead of an error page.
package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smilecloud/smilecloud/internal/adapter/nexhealth"
	"github.com/smilecloud/smilecloud/internal/cache"
	"github.com/smilecloud/smilecloud/internal/gateway"
	"github.com/smilecloud/smilecloud/pkg/pagination"
)

// Fetcher is the slice of the upstream client the adapter needs.
type Fetcher interface {
	Get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error)
}

// Adapter handles /api/patients and /api/patients/{id}.
type Adapter struct {
	upstream Fetcher
	cache    *cache.PagedCache
	logger   zerolog.Logger
}

// NewAdapter wires the upstream client and the shared resilience cache.
func NewAdapter(upstream Fetcher, store *cache.PagedCache, logger zerolog.Logger) *Adapter {
	return &Adapter{upstream: upstream, cache: store, logger: logger}
}

const routePrefix = "/api/patients"

// tagged wraps upstream data with the cache status for the front end.
type tagged struct {
	Data  json.RawMessage `json:"data"`
	Cache cache.Info      `json:"cache"`
}

// Handle implements gateway.Adapter.
func (a *Adapter) Handle(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	if req.Method != http.MethodGet {
		return gateway.BadRequest("method " + req.Method + " not supported for patients"), nil
	}

	rest := strings.Trim(strings.TrimPrefix(req.Path, routePrefix), "/")
	force := req.QueryParam("forceRefresh") == "true"
	if rest == "" {
		return a.list(ctx, req, force), nil
	}
	if strings.Contains(rest, "/") {
		return gateway.Fail(http.StatusNotFound, gateway.CodeNotFound, "Endpoint "+req.Path+" not found"), nil
	}
	return a.get(ctx, rest, force), nil
}

func (a *Adapter) list(ctx context.Context, req *gateway.Request, force bool) *gateway.Response {
	pg := pagination.FromQuery(req.Query)

	if !force && a.cache.Valid() {
		if raw, ok := a.cache.Page(pg.Page, pg.PageSize); ok {
			return gateway.OK(http.StatusOK, tagged{Data: raw, Cache: cache.Info{Status: cache.StatusHit}})
		}
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(pg.Page))
	query.Set("per_page", strconv.Itoa(pg.PageSize))
	raw, err := a.upstream.Get(ctx, "patients", query)
	if err == nil {
		if cerr := a.cache.SetPage(pg.Page, pg.PageSize, json.RawMessage(raw)); cerr != nil {
			a.logger.Warn().Err(cerr).Msg("failed to cache patients page")
		}
		return gateway.OK(http.StatusOK, tagged{Data: raw, Cache: cache.Info{Status: cache.StatusMiss}})
	}

	// Upstream is down: any cached copy beats an error page, even expired.
	if stale, ok := a.cache.Page(pg.Page, pg.PageSize); ok {
		a.logger.Warn().Err(err).Int("page", pg.Page).Msg("serving stale patients page")
		return gateway.OK(http.StatusOK, tagged{
			Data:  stale,
			Cache: cache.Info{Status: cache.StatusExpired, Error: err.Error()},
		})
	}
	return nexhealth.ErrorResponse(err)
}

func (a *Adapter) get(ctx context.Context, id string, force bool) *gateway.Response {
	if !force && a.cache.Valid() {
		if raw, ok := a.cache.Entity(id); ok {
			return gateway.OK(http.StatusOK, tagged{Data: raw, Cache: cache.Info{Status: cache.StatusHit}})
		}
	}

	raw, err := a.upstream.Get(ctx, "patients/"+id, nil)
	if err == nil {
		record := extractRecord(raw)
		if cerr := a.cache.SetEntity(id, record); cerr != nil {
			a.logger.Warn().Err(cerr).Str("id", id).Msg("failed to cache patient")
		}
		return gateway.OK(http.StatusOK, tagged{Data: record, Cache: cache.Info{Status: cache.StatusMiss}})
	}

	if stale, ok := a.cache.Entity(id); ok {
		a.logger.Warn().Err(err).Str("id", id).Msg("serving stale patient")
		return gateway.OK(http.StatusOK, tagged{
			Data:  stale,
			Cache: cache.Info{Status: cache.StatusExpired, Error: err.Error()},
		})
	}
	return nexhealth.ErrorResponse(err)
}

// extractRecord unwraps {"data": {...}} single-entity responses so the
// cached shape matches records indexed out of list pages.
func extractRecord(raw json.RawMessage) json.RawMessage {
	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Data) == 0 {
		return raw
	}
	trimmed := strings.TrimSpace(string(payload.Data))
	if strings.HasPrefix(trimmed, "{") {
		return payload.Data
	}
	return raw
}
