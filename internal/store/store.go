// Package store provides the generic tabular storage the catalog is built on.
//
// Rows are flat column -> value maps. Filters support equality and "value in
// set" predicates on named columns, which is all the resolver and the
// reconciliation engine need. Two implementations exist: Postgres (pgx +
// squirrel) for the server and CLI, and an in-memory store for tests.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by SelectOne, Update and Delete when no row matches.
var ErrNotFound = errors.New("row not found")

// ErrInvalidIdentifier is returned when a table or column name is not a
// plain lowercase SQL identifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ErrConflict is wrapped into errors caused by a unique constraint.
var ErrConflict = errors.New("unique constraint violated")

// Store is the storage contract shared by every catalog operation.
type Store interface {
	// Select returns all rows of table matching q.
	Select(ctx context.Context, table string, q Query) ([]Row, error)

	// SelectOne returns the first row matching q, or ErrNotFound.
	SelectOne(ctx context.Context, table string, q Query) (Row, error)

	// Insert stores row and returns the generated id.
	Insert(ctx context.Context, table string, row Row) (int64, error)

	// Update applies a partial row to the row with the given id.
	Update(ctx context.Context, table string, id int64, row Row) error

	// Delete removes the row with the given id.
	Delete(ctx context.Context, table string, id int64) error

	// DeleteWhere removes every row matching filters and returns the count.
	DeleteWhere(ctx context.Context, table string, filters ...Filter) (int64, error)

	// WithTx runs fn against a transactional view of the store. Writes made
	// through that view are discarded when fn returns an error.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Op is a filter predicate.
type Op int

const (
	OpEq Op = iota
	OpIn
)

// Filter restricts a query on one column.
type Filter struct {
	Column string
	Op     Op
	Value  any
	Values []any
}

// Eq matches rows whose column equals v.
func Eq(column string, v any) Filter {
	return Filter{Column: column, Op: OpEq, Value: v}
}

// In matches rows whose column is one of vs. An empty set matches nothing.
func In[T any](column string, vs []T) Filter {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = v
	}
	return Filter{Column: column, Op: OpIn, Values: values}
}

// Query narrows, orders and limits a Select.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Where builds a Query from filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Order returns a copy of q ordered by column (ascending).
func (q Query) Order(column string) Query {
	q.OrderBy = column
	q.Desc = false
	return q
}

// OrderDesc returns a copy of q ordered by column, newest/largest first.
func (q Query) OrderDesc(column string) Query {
	q.OrderBy = column
	q.Desc = true
	return q
}

// isIdentifier accepts lowercase identifiers of letters, digits and underscore.
func isIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
