package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct{ pool *pgxpool.Pool }

// NewPGStore creates a Store backed by a pgx connection pool.
func NewPGStore(pool *pgxpool.Pool) Store { return &pgStore{pool: pool} }

// wrapPG classifies pgx failures: rows-not-found keeps its sentinel,
// structured Postgres errors (constraint violations, bad columns) become
// client-correctable StoreErrors, everything else passes through.
func wrapPG(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &StoreError{Message: pgErr.Message, Err: err}
	}
	return err
}

func (s *pgStore) Select(ctx context.Context, table string, q Query) ([]Record, int, error) {
	if err := checkIdent("table", table); err != nil {
		return nil, 0, &StoreError{Message: err.Error(), Err: err}
	}

	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return nil, 0, &StoreError{Message: err.Error(), Err: err}
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM ` + table + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, wrapPG(err)
	}

	sql := `SELECT * FROM ` + table + where
	if q.SortBy != "" {
		if err := checkIdent("column", q.SortBy); err != nil {
			return nil, 0, &StoreError{Message: err.Error(), Err: err}
		}
		sql += ` ORDER BY ` + q.SortBy
		if q.SortDesc {
			sql += ` DESC`
		}
	}
	sql += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, q.Page.PageSize, q.Page.Offset())

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, wrapPG(err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, 0, wrapPG(err)
	}
	return records, total, nil
}

func (s *pgStore) GetByID(ctx context.Context, table, id string) (Record, error) {
	if err := checkIdent("table", table); err != nil {
		return nil, &StoreError{Message: err.Error(), Err: err}
	}
	rows, err := s.pool.Query(ctx, `SELECT * FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return nil, wrapPG(err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, wrapPG(err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (s *pgStore) Insert(ctx context.Context, table string, records []Record) ([]Record, error) {
	if err := checkIdent("table", table); err != nil {
		return nil, &StoreError{Message: err.Error(), Err: err}
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		sql, args, err := buildInsert(table, rec)
		if err != nil {
			return nil, &StoreError{Message: err.Error(), Err: err}
		}
		rows, err := s.pool.Query(ctx, sql, args...)
		if err != nil {
			return nil, wrapPG(err)
		}
		inserted, err := collectRecords(rows)
		rows.Close()
		if err != nil {
			return nil, wrapPG(err)
		}
		out = append(out, inserted...)
	}
	return out, nil
}

func (s *pgStore) Update(ctx context.Context, table, id string, record Record) (Record, error) {
	if err := checkIdent("table", table); err != nil {
		return nil, &StoreError{Message: err.Error(), Err: err}
	}
	sql, args, err := buildUpdate(table, id, record)
	if err != nil {
		return nil, &StoreError{Message: err.Error(), Err: err}
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPG(err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, wrapPG(err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (s *pgStore) Delete(ctx context.Context, table, id string) error {
	if err := checkIdent("table", table); err != nil {
		return &StoreError{Message: err.Error(), Err: err}
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return wrapPG(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildWhere renders equality filters as a WHERE clause with placeholders.
// Filter keys are sorted so the generated SQL is deterministic.
func buildWhere(filters map[string]string) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	cols := make([]string, 0, len(filters))
	for col := range filters {
		if err := checkIdent("column", col); err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var clauses []string
	var args []interface{}
	for i, col := range cols {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, filters[col])
	}
	return ` WHERE ` + strings.Join(clauses, ` AND `), args, nil
}

func buildInsert(table string, rec Record) (string, []interface{}, error) {
	if len(rec) == 0 {
		return "", nil, fmt.Errorf("empty record")
	}
	cols := make([]string, 0, len(rec))
	for col := range rec {
		if err := checkIdent("column", col); err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[col]
	}
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return sql, args, nil
}

func buildUpdate(table, id string, rec Record) (string, []interface{}, error) {
	// The id comes from the URL; skip any id key in the body without
	// mutating the caller's record.
	cols := make([]string, 0, len(rec))
	for col := range rec {
		if col == "id" {
			continue
		}
		if err := checkIdent("column", col); err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("empty record")
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, rec[col])
	}
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING *`,
		table, strings.Join(sets, ", "), len(cols)+1)
	return sql, args, nil
}

// collectRecords materializes rows as generic records keyed by column name.
func collectRecords(rows pgx.Rows) ([]Record, error) {
	var out []Record
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(fields))
		for i, f := range fields {
			rec[string(f.Name)] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
