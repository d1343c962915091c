package voicecampaign

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/smilecloud/smilecloud/internal/gateway"
	"github.com/smilecloud/smilecloud/pkg/pagination"
)

const routePrefix = "/api/voice-campaigns"

// Adapter routes /api/voice-campaigns requests to the campaign service.
type Adapter struct {
	svc    *Service
	logger zerolog.Logger
}

// NewAdapter creates the campaign adapter.
func NewAdapter(svc *Service, logger zerolog.Logger) *Adapter {
	return &Adapter{svc: svc, logger: logger}
}

// Handle implements gateway.Adapter.
func (a *Adapter) Handle(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	rest := strings.Trim(strings.TrimPrefix(req.Path, routePrefix), "/")

	if rest == "" {
		switch req.Method {
		case http.MethodGet:
			return a.list(ctx, req), nil
		case http.MethodPost:
			return a.create(ctx, req), nil
		}
		return gateway.BadRequest("method " + req.Method + " not supported for campaign collection"), nil
	}

	id, err := uuid.Parse(rest)
	if err != nil {
		return gateway.BadRequest("invalid campaign id: " + rest), nil
	}

	switch req.Method {
	case http.MethodGet:
		return a.get(ctx, id), nil
	case http.MethodPut:
		return a.update(ctx, req, id), nil
	case http.MethodDelete:
		return a.delete(ctx, id), nil
	}
	return gateway.BadRequest("method " + req.Method + " not supported for campaign routes"), nil
}

func (a *Adapter) list(ctx context.Context, req *gateway.Request) *gateway.Response {
	params := pagination.FromQuery(req.Query)
	items, total, err := a.svc.List(ctx, req.QueryParam("status"), params.PageSize, params.Offset())
	if err != nil {
		return a.errorResponse(err, "list campaigns")
	}
	if items == nil {
		items = []*Campaign{}
	}
	return gateway.OK(http.StatusOK, pagination.NewResponse(items, total, params))
}

func (a *Adapter) create(ctx context.Context, req *gateway.Request) *gateway.Response {
	c, err := decodeCampaign(req.Body)
	if err != nil {
		return gateway.Fail(http.StatusBadRequest, gateway.CodeInvalidRequestBody, err.Error())
	}
	if err := a.svc.Create(ctx, c); err != nil {
		return a.errorResponse(err, "create campaign")
	}
	return gateway.OK(http.StatusCreated, c)
}

func (a *Adapter) get(ctx context.Context, id uuid.UUID) *gateway.Response {
	c, err := a.svc.Get(ctx, id)
	if err != nil {
		return a.errorResponse(err, "get campaign")
	}
	return gateway.OK(http.StatusOK, c)
}

func (a *Adapter) update(ctx context.Context, req *gateway.Request, id uuid.UUID) *gateway.Response {
	c, err := decodeCampaign(req.Body)
	if err != nil {
		return gateway.Fail(http.StatusBadRequest, gateway.CodeInvalidRequestBody, err.Error())
	}
	c.ID = id
	if err := a.svc.Update(ctx, c); err != nil {
		return a.errorResponse(err, "update campaign")
	}
	return gateway.OK(http.StatusOK, c)
}

func (a *Adapter) delete(ctx context.Context, id uuid.UUID) *gateway.Response {
	if err := a.svc.Delete(ctx, id); err != nil {
		return a.errorResponse(err, "delete campaign")
	}
	return gateway.OK(http.StatusOK, map[string]interface{}{"deleted": id.String()})
}

func (a *Adapter) errorResponse(err error, op string) *gateway.Response {
	if errors.Is(err, pgx.ErrNoRows) {
		return gateway.Fail(http.StatusNotFound, gateway.CodeNotFound, "campaign not found")
	}
	a.logger.Error().Err(err).Str("op", op).Msg("campaign operation failed")
	return gateway.Fail(http.StatusBadRequest, gateway.CodeInvalidRequest, err.Error())
}

// decodeCampaign converts an envelope body (already decoded into generic
// JSON types by the transport) into a Campaign via a JSON round trip.
func decodeCampaign(body interface{}) (*Campaign, error) {
	if body == nil {
		return nil, errors.New("request body is required")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var c Campaign
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, errors.New("request body is not a valid campaign")
	}
	return &c, nil
}
