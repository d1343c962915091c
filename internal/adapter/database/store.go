// Package database exposes generic table CRUD through the gateway at
// /api/database/{table} and /api/database/{table}/{id}. The persistence
// provider is Postgres; tables are not modeled individually, so identifiers
// are validated before they reach SQL and values always travel as
// placeholders.
package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/smilecloud/smilecloud/pkg/pagination"
)

// Record is one table row as a generic JSON object.
type Record = map[string]interface{}

// Query describes a list request: pagination, ordering, and equality
// filters keyed by column name.
type Query struct {
	Page     pagination.Params
	SortBy   string
	SortDesc bool
	Filters  map[string]string
}

// Store abstracts table CRUD so the adapter can be tested without Postgres.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Record, int, error)
	GetByID(ctx context.Context, table, id string) (Record, error)
	Insert(ctx context.Context, table string, records []Record) ([]Record, error)
	Update(ctx context.Context, table, id string, record Record) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

// ErrNotFound is returned when an id does not exist in the table.
var ErrNotFound = errors.New("record not found")

// StoreError is a structured failure reported by the persistence layer,
// distinguishable from unexpected errors so the adapter can map it to a
// client-correctable 400 (constraint violations and the like).
type StoreError struct {
	Message string
	Err     error
}

func (e *StoreError) Error() string { return e.Message }
func (e *StoreError) Unwrap() error { return e.Err }

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validIdent reports whether s is safe to interpolate as a SQL identifier.
func validIdent(s string) bool {
	return identPattern.MatchString(s)
}

// checkIdent returns an error naming the offending identifier.
func checkIdent(kind, s string) error {
	if !validIdent(s) {
		return fmt.Errorf("invalid %s name: %q", kind, s)
	}
	return nil
}
