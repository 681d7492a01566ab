package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyValue is one column of a unique key. A nil Value means SQL NULL.
type KeyValue struct {
	Column string
	Value  any
}

// Store is the database boundary of an import run.
type Store interface {
	Ping(ctx context.Context) error

	// Exists reports whether a row matches key, comparing NULLs as equal.
	Exists(ctx context.Context, table string, key []KeyValue) (bool, error)

	// Insert writes rec and returns the value of idColumn. An empty
	// idColumn returns 0.
	Insert(ctx context.Context, table string, rec Record, idColumn string) (int64, error)

	// FillMissing sets the columns of values that are NULL on the row
	// matching key. It reports whether any column would change; with
	// apply=false nothing is written.
	FillMissing(ctx context.Context, table string, key []KeyValue, values Record, apply bool) (bool, error)

	// LoadLookup returns every natural key of an entity mapped to its id.
	LoadLookup(ctx context.Context, spec LookupSpec) (map[string]int64, error)

	// FindLookup returns the id of the row whose natural key equals parts.
	FindLookup(ctx context.Context, spec LookupSpec, parts []string) (int64, bool, error)

	// RunInTx calls fn with a Store bound to a new transaction. The
	// transaction commits when fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Savepoint runs fn so that a database error inside it leaves the
	// enclosing transaction usable.
	Savepoint(ctx context.Context, fn func() error) error
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PgStore implements Store on a pgx pool or transaction.
type PgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewPgStore creates a Store on pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, db: pool}
}

// Ping verifies connectivity.
func (s *PgStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Exists implements Store.
func (s *PgStore) Exists(ctx context.Context, table string, key []KeyValue) (bool, error) {
	wb := newWhereBuilder()
	for _, kv := range key {
		wb.AddNullSafe(quoteIdentifier(kv.Column), kv.Value)
	}
	where, args := wb.Build()

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s%s)", quoteIdentifier(table), where)

	var exists bool
	if err := s.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing %s: %w", table, err)
	}
	return exists, nil
}

// Insert implements Store.
func (s *PgStore) Insert(ctx context.Context, table string, rec Record, idColumn string) (int64, error) {
	cols := sortedColumns(rec)
	if len(cols) == 0 {
		return 0, fmt.Errorf("insert %s: no columns", table)
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table),
		strings.Join(quoteColumns(cols), ", "),
		strings.Join(placeholders, ", "),
	)

	if idColumn == "" {
		if _, err := s.db.Exec(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
		return 0, nil
	}

	var id int64
	query += " RETURNING " + quoteIdentifier(idColumn)
	if err := s.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

// FillMissing implements Store.
func (s *PgStore) FillMissing(ctx context.Context, table string, key []KeyValue, values Record, apply bool) (bool, error) {
	cols := sortedColumns(values)
	if len(cols) == 0 {
		return false, nil
	}

	nullChecks := make([]string, len(cols))
	for i, c := range cols {
		nullChecks[i] = quoteIdentifier(c) + " IS NULL"
	}
	matchRow := func(wb *whereBuilder) {
		for _, kv := range key {
			wb.AddNullSafe(quoteIdentifier(kv.Column), kv.Value)
		}
		wb.AddRaw("(" + strings.Join(nullChecks, " OR ") + ")")
	}

	if !apply {
		wb := newWhereBuilder()
		matchRow(wb)
		where, args := wb.Build()

		var found bool
		query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s%s)", quoteIdentifier(table), where)
		if err := s.db.QueryRow(ctx, query, args...).Scan(&found); err != nil {
			return false, fmt.Errorf("check fillable %s: %w", table, err)
		}
		return found, nil
	}

	wb := newWhereBuilder()
	sets := make([]string, len(cols))
	for i, c := range cols {
		q := quoteIdentifier(c)
		sets[i] = fmt.Sprintf("%s = COALESCE(%s, %s)", q, q, wb.Arg(values[c]))
	}
	matchRow(wb)
	where, args := wb.Build()

	query := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdentifier(table), strings.Join(sets, ", "), where)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("fill %s: %w", table, err)
	}
	return tag.RowsAffected() > 0, nil
}

// LoadLookup implements Store.
func (s *PgStore) LoadLookup(ctx context.Context, spec LookupSpec) (map[string]int64, error) {
	exprs := make([]string, len(spec.KeyParts))
	for i, kp := range spec.KeyParts {
		exprs[i] = kp.Expr
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s", spec.IDExpr, strings.Join(exprs, ", "), spec.From)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load %s lookup: %w", spec.Noun, err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var id int64
		parts := make([]pgtype.Text, len(exprs))
		dest := make([]any, 0, len(exprs)+1)
		dest = append(dest, &id)
		for i := range parts {
			dest = append(dest, &parts[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s lookup: %w", spec.Noun, err)
		}

		key := make([]string, len(parts))
		complete := true
		for i, p := range parts {
			if !p.Valid {
				complete = false
				break
			}
			key[i] = p.String
		}
		if complete {
			result[joinKey(key)] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s lookup: %w", spec.Noun, err)
	}

	return result, nil
}

// FindLookup implements Store.
func (s *PgStore) FindLookup(ctx context.Context, spec LookupSpec, parts []string) (int64, bool, error) {
	if len(parts) != len(spec.KeyParts) {
		return 0, false, fmt.Errorf("%s lookup: got %d key parts, want %d", spec.Noun, len(parts), len(spec.KeyParts))
	}

	wb := newWhereBuilder()
	for i, kp := range spec.KeyParts {
		wb.AddEquals(kp.Expr, parts[i])
	}
	where, args := wb.Build()

	query := fmt.Sprintf("SELECT %s FROM %s%s LIMIT 1", spec.IDExpr, spec.From, where)

	var id int64
	err := s.db.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find %s: %w", spec.Noun, err)
	}
	return id, true, nil
}

// RunInTx implements Store.
func (s *PgStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &PgStore{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Savepoint implements Store. Outside a transaction fn runs directly.
func (s *PgStore) Savepoint(ctx context.Context, fn func() error) error {
	if !s.inTx {
		return fn()
	}

	if _, err := s.db.Exec(ctx, "SAVEPOINT import_row"); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(); err != nil {
		if _, rbErr := s.db.Exec(ctx, "ROLLBACK TO SAVEPOINT import_row"); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return err
	}

	_, err := s.db.Exec(ctx, "RELEASE SAVEPOINT import_row")
	if err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conditions []string
	args       []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

// Arg registers a value and returns its placeholder.
func (wb *whereBuilder) Arg(v any) string {
	wb.args = append(wb.args, v)
	return fmt.Sprintf("$%d", len(wb.args))
}

// AddEquals adds "expr = $n".
func (wb *whereBuilder) AddEquals(expr string, v any) {
	wb.conditions = append(wb.conditions, expr+" = "+wb.Arg(v))
}

// AddNullSafe adds "expr IS NOT DISTINCT FROM $n", or "expr IS NULL" for nil.
func (wb *whereBuilder) AddNullSafe(expr string, v any) {
	if v == nil {
		wb.conditions = append(wb.conditions, expr+" IS NULL")
		return
	}
	wb.conditions = append(wb.conditions, expr+" IS NOT DISTINCT FROM "+wb.Arg(v))
}

// AddRaw adds a condition without arguments.
func (wb *whereBuilder) AddRaw(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

// Build returns the WHERE clause (with a leading space) and its arguments.
func (wb *whereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
