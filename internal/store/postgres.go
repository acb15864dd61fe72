package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres implements Store on a pgx connection or pool.
type Postgres struct {
	db DBTX
	sb sq.StatementBuilderType
}

// NewPostgres wraps db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// WithTx runs fn inside a transaction. Inside an existing transaction pgx
// opens a savepoint instead.
func (p *Postgres) WithTx(ctx context.Context, fn func(Store) error) error {
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		return fn(&Postgres{db: tx, sb: p.sb})
	})
}

func (p *Postgres) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if !isIdentifier(table) {
		return nil, fmt.Errorf("select %q: %w", table, ErrInvalidIdentifier)
	}

	b := p.sb.Select("*").From(ident(table))
	for _, f := range q.Filters {
		pred, err := predicate(f)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		b = b.Where(pred)
	}

	dir := ""
	if q.Desc {
		dir = " DESC"
	}
	if q.OrderBy != "" {
		if !isIdentifier(q.OrderBy) {
			return nil, fmt.Errorf("select %s order %q: %w", table, q.OrderBy, ErrInvalidIdentifier)
		}
		b = b.OrderBy(ident(q.OrderBy)+dir, "id"+dir)
	} else {
		b = b.OrderBy("id" + dir)
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s: %w", table, err)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}

	out := make([]Row, len(maps))
	for i, m := range maps {
		r := make(Row, len(m))
		for k, v := range m {
			r[k] = fromPg(v)
		}
		out[i] = r
	}
	return out, nil
}

func (p *Postgres) SelectOne(ctx context.Context, table string, q Query) (Row, error) {
	q.Limit = 1
	rows, err := p.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (p *Postgres) Insert(ctx context.Context, table string, row Row) (int64, error) {
	if !isIdentifier(table) {
		return 0, fmt.Errorf("insert %q: %w", table, ErrInvalidIdentifier)
	}
	values, err := toPg(row)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}

	query, args, err := p.sb.Insert(ident(table)).
		SetMap(values).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert %s: %w", table, err)
	}

	var id int64
	if err := p.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, conflict(err))
	}
	return id, nil
}

func (p *Postgres) Update(ctx context.Context, table string, id int64, row Row) error {
	if !isIdentifier(table) {
		return fmt.Errorf("update %q: %w", table, ErrInvalidIdentifier)
	}
	partial := row.Clone()
	delete(partial, "id")
	if len(partial) == 0 {
		return nil
	}
	values, err := toPg(partial)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	query, args, err := p.sb.Update(ident(table)).
		SetMap(values).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update %s: %w", table, err)
	}

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, conflict(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, table string, id int64) error {
	n, err := p.DeleteWhere(ctx, table, Eq("id", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteWhere(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if !isIdentifier(table) {
		return 0, fmt.Errorf("delete %q: %w", table, ErrInvalidIdentifier)
	}
	if len(filters) == 0 {
		return 0, errors.New("delete without filters is not allowed")
	}

	b := p.sb.Delete(ident(table))
	for _, f := range filters {
		pred, err := predicate(f)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
		b = b.Where(pred)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete %s: %w", table, err)
	}

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// predicate turns a Filter into a squirrel condition. A slice value in sq.Eq
// renders as IN, and an empty slice renders as a false predicate.
func predicate(f Filter) (sq.Sqlizer, error) {
	if !isIdentifier(f.Column) {
		return nil, fmt.Errorf("column %q: %w", f.Column, ErrInvalidIdentifier)
	}
	col := ident(f.Column)
	switch f.Op {
	case OpEq:
		return sq.Eq{col: normalize(f.Value)}, nil
	case OpIn:
		values := make([]any, len(f.Values))
		for i, v := range f.Values {
			values[i] = normalize(v)
		}
		return sq.Eq{col: values}, nil
	}
	return nil, fmt.Errorf("unsupported filter op %d", f.Op)
}

func toPg(row Row) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if !isIdentifier(k) {
			return nil, fmt.Errorf("column %q: %w", k, ErrInvalidIdentifier)
		}
		out[ident(k)] = normalize(v)
	}
	return out, nil
}

// fromPg converts driver values into the canonical Row value set.
func fromPg(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(x).String()
	}
	return normalize(v)
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// conflict tags unique violations (SQLSTATE 23505) with ErrConflict.
func conflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
