// Package sqlstore implements crud.Model over a relational table using
// database/sql and the MySQL driver, with deep search and association
// loading through JOINs and cascading writes in transactions.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"go.crudcast.dev/internal/common/tsid"
	"go.crudcast.dev/internal/crud"
)

// Association declares a statically-known relation to another table. The
// parent table holds a foreign-key column pointing at the related row.
type Association struct {
	// Table is the related table
	Table string

	// ForeignKey is the column on the parent table referencing the
	// related row's id
	ForeignKey string

	// IDProperty is the related table's identifier column, "id" when empty
	IDProperty string

	// Columns are the related columns selected when loading
	Columns []string

	// Load joins the related row into reads, nested under the field name
	Load bool

	// Cascade allows a nested object payload, created with the parent in
	// one transaction
	Cascade bool

	// AutoIncrement leaves cascade-insert id generation to the database;
	// by default a sortable id is generated for nested payloads lacking one
	AutoIncrement bool

	// SearchFields lists related columns included in deep search
	SearchFields []string
}

// IDColumn returns the association's identifier column.
func (a Association) IDColumn() string {
	if a.IDProperty == "" {
		return "id"
	}
	return a.IDProperty
}

// Config is the static field declaration for one table.
type Config struct {
	// Table is the backing table name
	Table string

	// IDProperty is the identifier column, "id" when empty
	IDProperty string

	// Columns are the table's columns; filter, sort and payload fields are
	// validated against this whitelist
	Columns []string

	// SearchFields lists root columns matched by the search parameter
	SearchFields []string

	// AutoIncrement leaves id generation to the database; by default a
	// sortable id is generated for payloads lacking one
	AutoIncrement bool

	// Associations maps payload field name to its relation declaration
	Associations map[string]Association
}

// Store is a MySQL-backed crud.Model.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a Store over db for the configured table.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.IDProperty == "" {
		cfg.IDProperty = "id"
	}
	return &Store{db: db, cfg: cfg}
}

// GetAll returns the requested page, joining loaded associations and
// translating search into a LIKE disjunction.
func (s *Store) GetAll(ctx context.Context, opts crud.Options) ([]crud.Entity, error) {
	var args []any
	where, err := s.buildWhere(opts.Filter, &args)
	if err != nil {
		return nil, err
	}
	if search := s.buildSearch(opts.Search, &args); search != "" {
		if where != "" {
			where = "(" + where + ") AND " + search
		} else {
			where = search
		}
	}
	orderBy, err := s.buildOrderBy(opts.Sort)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", s.selectColumns(), quote(s.cfg.Table), s.joinClause(opts.Search != ""))
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	if orderBy != "" {
		b.WriteString(" ORDER BY " + orderBy)
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", opts.Limit(), opts.Skip())

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []crud.Entity
	for rows.Next() {
		entity, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, opts.Projection.Apply(entity))
	}
	return entities, rows.Err()
}

// GetOne returns the first row matching filter, or nil.
func (s *Store) GetOne(ctx context.Context, filter crud.Filter, projection crud.Projection) (crud.Entity, error) {
	entity, err := s.selectOne(ctx, s.db, filter)
	if err != nil || entity == nil {
		return nil, err
	}
	return projection.Apply(entity), nil
}

// Count returns the number of rows matching filter.
func (s *Store) Count(ctx context.Context, filter crud.Filter) (int64, error) {
	var args []any
	where, err := s.buildWhere(filter, &args)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quote(s.cfg.Table), s.joinClause(false))
	if where != "" {
		query += " WHERE " + where
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// AddOne persists payload in one transaction: cascade associations are
// inserted into their own tables first and their ids become the parent's
// foreign keys; bare ids attach existing rows. Rows get a generated sortable
// id when the payload carries none, unless the table is AutoIncrement.
func (s *Store) AddOne(ctx context.Context, payload crud.Entity) (crud.Entity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	values := make(map[string]any)
	for _, col := range s.cfg.Columns {
		if v, ok := payload[col]; ok {
			values[col] = v
		}
	}
	if _, ok := values[s.cfg.IDProperty]; !ok && !s.cfg.AutoIncrement {
		values[s.cfg.IDProperty] = tsid.Generate()
	}

	for field, assoc := range s.cfg.Associations {
		value, ok := payload[field]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			if !assoc.Cascade {
				return nil, fmt.Errorf("association %q does not accept nested payloads", field)
			}
			child := make(map[string]any, len(v)+1)
			for key, val := range v {
				child[key] = val
			}
			if _, ok := child[assoc.IDColumn()]; !ok && !assoc.AutoIncrement {
				child[assoc.IDColumn()] = tsid.Generate()
			}
			childID, err := s.insertRow(ctx, tx, assoc.Table, assoc.IDColumn(), assoc.Columns, child)
			if err != nil {
				return nil, wrapWriteError(err)
			}
			values[assoc.ForeignKey] = childID
		default:
			values[assoc.ForeignKey] = value
		}
	}

	id, err := s.insertRow(ctx, tx, s.cfg.Table, s.cfg.IDProperty, s.cfg.Columns, values)
	if err != nil {
		return nil, wrapWriteError(err)
	}

	entity, err := s.selectOne(ctx, tx, crud.Filter{s.cfg.IDProperty: id})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entity, nil
}

// UpdateOne applies payload to the first row matching filter and returns the
// updated row, or nil when nothing matched.
func (s *Store) UpdateOne(ctx context.Context, filter crud.Filter, payload crud.Entity) (crud.Entity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := s.selectOne(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	id := existing[s.cfg.IDProperty]

	var (
		assignments []string
		args        []any
	)
	for _, col := range s.cfg.Columns {
		if col == s.cfg.IDProperty {
			continue
		}
		if v, ok := payload[col]; ok {
			assignments = append(assignments, quote(col)+" = ?")
			args = append(args, v)
		}
	}
	for field, assoc := range s.cfg.Associations {
		if v, ok := payload[field]; ok {
			assignments = append(assignments, quote(assoc.ForeignKey)+" = ?")
			args = append(args, v)
		}
	}

	if len(assignments) > 0 {
		args = append(args, id)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			quote(s.cfg.Table), strings.Join(assignments, ", "), quote(s.cfg.IDProperty))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, wrapWriteError(err)
		}
	}

	updated, err := s.selectOne(ctx, tx, crud.Filter{s.cfg.IDProperty: id})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteOne removes the first row matching filter and returns it, or nil
// when nothing matched.
func (s *Store) DeleteOne(ctx context.Context, filter crud.Filter) (crud.Entity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := s.selectOne(ctx, tx, filter)
	if err != nil || existing == nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(s.cfg.Table), quote(s.cfg.IDProperty))
	if _, err := tx.ExecContext(ctx, query, existing[s.cfg.IDProperty]); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return existing, nil
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) selectOne(ctx context.Context, q querier, filter crud.Filter) (crud.Entity, error) {
	var args []any
	where, err := s.buildWhere(filter, &args)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", s.selectColumns(), quote(s.cfg.Table), s.joinClause(false))
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	b.WriteString(" LIMIT 1")

	rows, err := q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return s.scanRow(rows)
}

// insertRow inserts the whitelisted columns of values and returns the row
// id: the provided one when present, otherwise the auto-increment id.
func (s *Store) insertRow(ctx context.Context, q querier, table, idColumn string, columns []string, values map[string]any) (any, error) {
	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for _, col := range columns {
		if v, ok := values[col]; ok {
			cols = append(cols, quote(col))
			placeholders = append(placeholders, "?")
			args = append(args, v)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("empty insert into %s", table)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if id, ok := values[idColumn]; ok {
		return id, nil
	}
	return result.LastInsertId()
}

// scanRow reads the current row into an entity, folding aliased association
// columns ("department__name") into nested maps.
func (s *Store) scanRow(rows *sql.Rows) (crud.Entity, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}

	entity := make(crud.Entity, len(columns))
	for i, name := range columns {
		value := values[i]
		if raw, ok := value.([]byte); ok {
			value = string(raw)
		}
		if assoc, col, ok := strings.Cut(name, assocSeparator); ok {
			nested, _ := entity[assoc].(crud.Entity)
			if nested == nil {
				if value == nil {
					continue
				}
				nested = make(crud.Entity)
				entity[assoc] = nested
			}
			nested[col] = value
			continue
		}
		entity[name] = value
	}
	return entity, nil
}

func wrapWriteError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return fmt.Errorf("%w: %s", crud.ErrConstraintViolation, mysqlErr.Message)
	}
	return err
}
