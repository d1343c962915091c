package database

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smilecloud/smilecloud/internal/gateway"
	"github.com/smilecloud/smilecloud/pkg/pagination"
)

// Error codes reported by this adapter.
const (
	CodeQueryError  = "DATABASE_QUERY_ERROR"
	CodeInsertError = "DATABASE_INSERT_ERROR"
	CodeUpdateError = "DATABASE_UPDATE_ERROR"
	CodeDeleteError = "DATABASE_DELETE_ERROR"
)

// Query keys that are never treated as column filters.
var reservedParams = map[string]bool{
	"page":          true,
	"pageSize":      true,
	"sortBy":        true,
	"sortDirection": true,
}

// Adapter sub-routes /api/database/{table}[/{id}] onto a Store.
type Adapter struct {
	store  Store
	logger zerolog.Logger
}

// NewAdapter wraps a store.
func NewAdapter(store Store, logger zerolog.Logger) *Adapter {
	return &Adapter{store: store, logger: logger}
}

const routePrefix = "/api/database/"

// Handle implements gateway.Adapter.
func (a *Adapter) Handle(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	rest := strings.Trim(strings.TrimPrefix(req.Path, routePrefix), "/")
	if rest == "" {
		return gateway.BadRequest("missing table name in path"), nil
	}
	parts := strings.SplitN(rest, "/", 2)
	table := parts[0]
	var id string
	if len(parts) == 2 {
		id = parts[1]
	}
	if !validIdent(table) {
		return gateway.BadRequest("invalid table name: " + table), nil
	}

	switch req.Method {
	case http.MethodGet:
		if id != "" {
			return a.getByID(ctx, table, id), nil
		}
		return a.list(ctx, table, req.Query), nil
	case http.MethodPost:
		return a.insert(ctx, table, req.Body), nil
	case http.MethodPut:
		if id == "" {
			return gateway.BadRequest("record id is required for PUT"), nil
		}
		return a.update(ctx, table, id, req.Body), nil
	case http.MethodDelete:
		if id == "" {
			return gateway.BadRequest("record id is required for DELETE"), nil
		}
		return a.delete(ctx, table, id), nil
	default:
		return gateway.BadRequest("method " + req.Method + " not supported for database routes"), nil
	}
}

func (a *Adapter) list(ctx context.Context, table string, query map[string]string) *gateway.Response {
	q := Query{
		Page:    pagination.FromQuery(query),
		Filters: make(map[string]string),
	}
	if query != nil {
		q.SortBy = query["sortBy"]
		switch dir := query["sortDirection"]; dir {
		case "", "asc":
		case "desc":
			q.SortDesc = true
		default:
			return gateway.BadRequest("sortDirection must be \"asc\" or \"desc\"")
		}
		// Anything outside the reserved set is an equality filter.
		for k, v := range query {
			if !reservedParams[k] {
				q.Filters[k] = v
			}
		}
	}

	records, total, err := a.store.Select(ctx, table, q)
	if err != nil {
		return a.errorResponse(CodeQueryError, err)
	}
	if records == nil {
		records = []Record{}
	}
	return gateway.OK(http.StatusOK, pagination.NewResponse(records, total, q.Page))
}

func (a *Adapter) getByID(ctx context.Context, table, id string) *gateway.Response {
	rec, err := a.store.GetByID(ctx, table, id)
	if err != nil {
		return a.errorResponse(CodeQueryError, err)
	}
	return gateway.OK(http.StatusOK, rec)
}

func (a *Adapter) insert(ctx context.Context, table string, body interface{}) *gateway.Response {
	records, err := decodeRecords(body)
	if err != nil {
		return gateway.Fail(http.StatusBadRequest, gateway.CodeInvalidRequestBody, err.Error())
	}
	inserted, err := a.store.Insert(ctx, table, records)
	if err != nil {
		return a.errorResponse(CodeInsertError, err)
	}
	return gateway.OK(http.StatusCreated, inserted)
}

func (a *Adapter) update(ctx context.Context, table, id string, body interface{}) *gateway.Response {
	rec, ok := body.(map[string]interface{})
	if !ok || len(rec) == 0 {
		return gateway.Fail(http.StatusBadRequest, gateway.CodeInvalidRequestBody,
			"request body must be a record object")
	}
	updated, err := a.store.Update(ctx, table, id, rec)
	if err != nil {
		return a.errorResponse(CodeUpdateError, err)
	}
	return gateway.OK(http.StatusOK, updated)
}

func (a *Adapter) delete(ctx context.Context, table, id string) *gateway.Response {
	if err := a.store.Delete(ctx, table, id); err != nil {
		return a.errorResponse(CodeDeleteError, err)
	}
	return gateway.OK(http.StatusOK, map[string]string{"id": id})
}

// errorResponse maps store failures: missing rows are 404s, structured
// persistence errors are client-correctable 400s, the rest are 500s.
func (a *Adapter) errorResponse(code string, err error) *gateway.Response {
	if errors.Is(err, ErrNotFound) {
		return gateway.Fail(http.StatusNotFound, gateway.CodeNotFound, "record not found")
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return gateway.Fail(http.StatusBadRequest, code, storeErr.Message)
	}
	a.logger.Error().Err(err).Msg("unexpected database error")
	return gateway.Fail(http.StatusInternalServerError, code, err.Error())
}

// decodeRecords accepts a single record object or an array of them.
func decodeRecords(body interface{}) ([]Record, error) {
	switch v := body.(type) {
	case map[string]interface{}:
		return []Record{v}, nil
	case []interface{}:
		records := make([]Record, 0, len(v))
		for _, item := range v {
			rec, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.New("array items must be record objects")
			}
			records = append(records, rec)
		}
		if len(records) == 0 {
			return nil, errors.New("empty record array")
		}
		return records, nil
	default:
		return nil, errors.New("request body must be a record object or an array of records")
	}
}
