// Package postgres implements the backend collaborator directly on a
// PostgreSQL database: table reads through pgx and a local auth backend.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/suanfamama/atelier/internal/backend"
)

// DB is the subset of *pgxpool.Pool the backend uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// readableTables lists the tables Select, Count and Upsert may touch.
// Auth tables stay private to LocalAuth.
var readableTables = []string{
	backend.TableUsers,
	backend.TableCollections,
	backend.TableFeaturedCollections,
	backend.TableNewsItems,
}

// hiddenColumns never leave the database through the generic store.
var hiddenColumns = []string{"password_hash"}

// defaultColumns replaces SELECT * for tables that carry hidden columns.
var defaultColumns = map[string][]string{
	backend.TableUsers: {"id", "email", "role", "created_at", "updated_at"},
}

// Store implements backend.Store with pgx.
type Store struct {
	db DB
}

var _ backend.Store = (*Store)(nil)

// NewStore creates a new store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Select aggregates matching rows into one JSON array inside Postgres and
// decodes it into dest, so any row struct with json tags works.
func (s *Store) Select(ctx context.Context, q backend.Query, dest any) error {
	inner, args, err := buildSelect(q)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT COALESCE(json_agg(t), '[]'::json) FROM (%s) t`, inner)

	var data []byte
	if err := s.db.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		return fmt.Errorf("select %s: %w", q.Table, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Table, err)
	}
	return nil
}

// Count returns the number of rows matching the query filters.
func (s *Store) Count(ctx context.Context, q backend.Query) (int, error) {
	if err := checkTable(q.Table); err != nil {
		return 0, err
	}

	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM " + pgx.Identifier{q.Table}.Sanitize() + where

	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Table, err)
	}
	return n, nil
}

// Upsert writes the JSON fields of row into table, merging on id.
// Only the columns present in the JSON are written; Postgres does the type
// coercion through jsonb_populate_record.
func (s *Store) Upsert(ctx context.Context, table string, row any) error {
	if err := checkTable(table); err != nil {
		return err
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal %s row: %w", table, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("upsert %s: row must encode to a JSON object: %w", table, err)
	}
	if _, ok := fields["id"]; !ok {
		return fmt.Errorf("upsert %s: row has no id", table)
	}

	columns := make([]string, 0, len(fields))
	for c := range fields {
		if slices.Contains(hiddenColumns, c) {
			continue
		}
		columns = append(columns, c)
	}
	slices.Sort(columns)

	quoted := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		if c != "id" {
			updates = append(updates, quoted[i]+" = EXCLUDED."+quoted[i])
		}
	}

	tableName := pgx.Identifier{table}.Sanitize()
	cols := strings.Join(quoted, ", ")
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) SELECT %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) ON CONFLICT ("id") DO `,
		tableName, cols, cols, tableName,
	)
	if len(updates) == 0 {
		query += "NOTHING"
	} else {
		query += "UPDATE SET " + strings.Join(updates, ", ")
	}

	if _, err := s.db.Exec(ctx, query, data); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func checkTable(table string) error {
	if !slices.Contains(readableTables, table) {
		return fmt.Errorf("%w: %q", backend.ErrUnknownTable, table)
	}
	return nil
}

func buildSelect(q backend.Query) (string, []any, error) {
	if err := checkTable(q.Table); err != nil {
		return "", nil, err
	}

	columns := q.Columns
	if len(columns) == 0 {
		columns = defaultColumns[q.Table]
	}

	cols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			if slices.Contains(hiddenColumns, c) {
				return "", nil, fmt.Errorf("column %q is not readable", c)
			}
			quoted[i] = pgx.Identifier{c}.Sanitize()
		}
		cols = strings.Join(quoted, ", ")
	}

	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier{q.Table}.Sanitize())
	b.WriteString(where)

	if q.Order != nil {
		b.WriteString(" ORDER BY ")
		b.WriteString(pgx.Identifier{q.Order.Column}.Sanitize())
		if q.Order.Descending {
			b.WriteString(" DESC")
		}
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}

	return b.String(), args, nil
}

func buildWhere(filters []backend.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		if f.Column == "" {
			return "", nil, errors.New("filter column is empty")
		}
		if slices.Contains(hiddenColumns, f.Column) {
			return "", nil, fmt.Errorf("column %q is not filterable", f.Column)
		}

		col := pgx.Identifier{f.Column}.Sanitize()
		if f.Column == "email" {
			clauses[i] = fmt.Sprintf("LOWER(%s) = LOWER($%d)", col, i+1)
		} else {
			clauses[i] = fmt.Sprintf("%s = $%d", col, i+1)
		}
		args[i] = f.Value
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
