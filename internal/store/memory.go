package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store. It is safe for concurrent use and is used by
// tests and by the CLI's dry-run mode.
type Memory struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	tables map[string]*memTable

	// FailOn, when set, is consulted before every write. A non-nil error is
	// returned to the caller and the write is not applied.
	FailOn func(op, table string, row Row) error
}

type memTable struct {
	rows   []Row
	nextID int64
	unique [][]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

// Unique declares a unique constraint on table over columns. Inserts and
// updates that would violate it fail like a Postgres unique violation.
func (m *Memory) Unique(table string, columns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(table)
	t.unique = append(t.unique, columns)
}

// Len returns the number of rows in table.
func (m *Memory) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

// WithTx serialises transactions and restores the previous contents of every
// table when fn fails. Writes made outside the transaction while it runs are
// lost on rollback; the memory store is not meant for concurrent writers.
func (m *Memory) WithTx(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	saved := m.snapshot()
	if err := fn(memTx{m}); err != nil {
		m.mu.Lock()
		m.tables = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

// memTx is the Store handed to a transaction body. Nested transactions join
// the outer one.
type memTx struct {
	*Memory
}

func (t memTx) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (m *Memory) snapshot() map[string]*memTable {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*memTable, len(m.tables))
	for name, t := range m.tables {
		cp := &memTable{
			rows:   make([]Row, len(t.rows)),
			nextID: t.nextID,
			unique: t.unique,
		}
		for i, r := range t.rows {
			cp.rows[i] = r.Clone()
		}
		out[name] = cp
	}
	return out
}

func (m *Memory) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{nextID: 1}
		m.tables[name] = t
	}
	return t
}

func (m *Memory) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isIdentifier(table) {
		return nil, fmt.Errorf("select %q: %w", table, ErrInvalidIdentifier)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return []Row{}, nil
	}

	out := make([]Row, 0)
	for _, r := range t.rows {
		if matches(r, q.Filters) {
			out = append(out, r.Clone())
		}
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "id"
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i][orderBy], out[j][orderBy])
		if c == 0 {
			c = compare(out[i].ID(), out[j].ID())
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) SelectOne(ctx context.Context, table string, q Query) (Row, error) {
	q.Limit = 1
	rows, err := m.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (m *Memory) Insert(ctx context.Context, table string, row Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !isIdentifier(table) {
		return 0, fmt.Errorf("insert %q: %w", table, ErrInvalidIdentifier)
	}
	if m.FailOn != nil {
		if err := m.FailOn("insert", table, row); err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	stored := make(Row, len(row)+1)
	for k, v := range row {
		if !isIdentifier(k) {
			return 0, fmt.Errorf("insert %s column %q: %w", table, k, ErrInvalidIdentifier)
		}
		stored[k] = normalize(v)
	}
	id := t.nextID
	stored["id"] = id

	if err := t.checkUnique(stored, 0); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}

	t.nextID++
	t.rows = append(t.rows, stored)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, table string, id int64, row Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !isIdentifier(table) {
		return fmt.Errorf("update %q: %w", table, ErrInvalidIdentifier)
	}
	if m.FailOn != nil {
		if err := m.FailOn("update", table, row); err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return ErrNotFound
	}
	for i, r := range t.rows {
		if r.ID() != id {
			continue
		}
		next := r.Clone()
		for k, v := range row {
			if k == "id" {
				continue
			}
			if !isIdentifier(k) {
				return fmt.Errorf("update %s column %q: %w", table, k, ErrInvalidIdentifier)
			}
			next[k] = normalize(v)
		}
		if err := t.checkUnique(next, id); err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
		t.rows[i] = next
		return nil
	}
	return ErrNotFound
}

func (m *Memory) Delete(ctx context.Context, table string, id int64) error {
	n, err := m.DeleteWhere(ctx, table, Eq("id", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Memory) DeleteWhere(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !isIdentifier(table) {
		return 0, fmt.Errorf("delete %q: %w", table, ErrInvalidIdentifier)
	}
	if m.FailOn != nil {
		if err := m.FailOn("delete", table, nil); err != nil {
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return 0, nil
	}
	kept := t.rows[:0]
	var removed int64
	for _, r := range t.rows {
		if matches(r, filters) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	return removed, nil
}

func (t *memTable) checkUnique(candidate Row, selfID int64) error {
	for _, cols := range t.unique {
		for _, r := range t.rows {
			if r.ID() == selfID {
				continue
			}
			same := true
			for _, c := range cols {
				if !equal(r[c], candidate[c]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: duplicate key value on (%s)", ErrConflict, strings.Join(cols, ", "))
			}
		}
	}
	return nil
}

func matches(r Row, filters []Filter) bool {
	for _, f := range filters {
		v := r[f.Column]
		switch f.Op {
		case OpEq:
			if !equal(v, f.Value) {
				return false
			}
		case OpIn:
			found := false
			for _, candidate := range f.Values {
				if equal(v, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(strings.ToLower(x), strings.ToLower(y))
		}
	case nil:
		if b == nil {
			return 0
		}
		return 1
	}
	if b == nil {
		return -1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
