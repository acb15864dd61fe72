package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_InsertSelect(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id1, err := m.Insert(ctx, "makes", Row{"name": "Glock"})
	require.NoError(t, err)
	id2, err := m.Insert(ctx, "makes", Row{"name": "beretta"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	rows, err := m.Select(ctx, "makes", Query{}.Order("name"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "beretta", rows[0].String("name"))
	assert.Equal(t, "Glock", rows[1].String("name"))
}

func TestMemory_Filters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, r := range []Row{
		{"name": "G19", "make_id": 1},
		{"name": "G17", "make_id": 1},
		{"name": "P320", "make_id": 2},
	} {
		_, err := m.Insert(ctx, "models", r)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"eq int normalised", Where(Eq("make_id", int64(1))), 2},
		{"eq string", Where(Eq("name", "P320")), 1},
		{"in", Where(In("make_id", []int64{2, 3})), 1},
		{"empty in matches nothing", Where(In("make_id", []int64{})), 0},
		{"combined", Where(Eq("make_id", 1), Eq("name", "G17")), 1},
		{"case sensitive eq", Where(Eq("name", "g17")), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := m.Select(ctx, "models", tt.query)
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestMemory_SelectOneNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.SelectOne(context.Background(), "makes", Where(Eq("name", "none")))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Insert(ctx, "footprints", Row{"name": "RMR", "description": "old"})
	require.NoError(t, err)

	require.NoError(t, m.Update(ctx, "footprints", id, Row{"description": "new"}))
	row, err := m.SelectOne(ctx, "footprints", Where(Eq("id", id)))
	require.NoError(t, err)
	assert.Equal(t, "new", row.String("description"))
	assert.Equal(t, "RMR", row.String("name"))

	assert.ErrorIs(t, m.Update(ctx, "footprints", id+10, Row{"name": "x"}), ErrNotFound)

	require.NoError(t, m.Delete(ctx, "footprints", id))
	assert.ErrorIs(t, m.Delete(ctx, "footprints", id), ErrNotFound)
	assert.Equal(t, 0, m.Len("footprints"))
}

func TestMemory_Unique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Unique("makes", "name")

	_, err := m.Insert(ctx, "makes", Row{"name": "Glock"})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "makes", Row{"name": "Glock"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemory_FailOn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("connection reset by peer")
	m.FailOn = func(op, table string, row Row) error {
		if op == "insert" && row.String("name") == "bad" {
			return boom
		}
		return nil
	}

	_, err := m.Insert(ctx, "makes", Row{"name": "bad"})
	assert.ErrorIs(t, err, boom)
	_, err = m.Insert(ctx, "makes", Row{"name": "good"})
	assert.NoError(t, err)
}

func TestMemory_DeleteWhere(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 3; i++ {
		_, err := m.Insert(ctx, "model_footprints", Row{"model_id": 7, "footprint_id": i})
		require.NoError(t, err)
	}
	_, err := m.Insert(ctx, "model_footprints", Row{"model_id": 8, "footprint_id": 1})
	require.NoError(t, err)

	n, err := m.DeleteWhere(ctx, "model_footprints", Eq("model_id", 7))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 1, m.Len("model_footprints"))
}

func TestMemory_RejectsBadIdentifiers(t *testing.T) {
	m := NewMemory()
	_, err := m.Select(context.Background(), "makes; drop table x", Query{})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestRow_Getters(t *testing.T) {
	r := Row{"id": int64(4), "msrp": 499.0, "solar": true, "name": nil, "count": int32(3)}
	assert.EqualValues(t, 4, r.ID())
	require.NotNil(t, r.Float("msrp"))
	assert.Equal(t, 499.0, *r.Float("msrp"))
	assert.Nil(t, r.Float("missing"))
	assert.True(t, r.Bool("solar"))
	assert.Equal(t, "", r.String("name"))
	assert.EqualValues(t, 3, r.Int64("count"))
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Insert(ctx, "makes", Row{"name": "Glock"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.WithTx(ctx, func(tx Store) error {
		if _, err := tx.Insert(ctx, "makes", Row{"name": "Sig Sauer"}); err != nil {
			return err
		}
		// nested transactions join the outer one
		return tx.WithTx(ctx, func(inner Store) error {
			if _, err := inner.DeleteWhere(ctx, "makes", Eq("name", "Glock")); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	rows, err := m.Select(ctx, "makes", Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Glock", rows[0].String("name"))

	id, err := m.Insert(ctx, "makes", Row{"name": "Walther"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id, "ids consumed by a rolled back insert are reused")
}

func TestMemory_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.WithTx(ctx, func(tx Store) error {
		_, err := tx.Insert(ctx, "makes", Row{"name": "Glock"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len("makes"))
}

func TestMemory_OrderDesc(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, n := range []string{"a", "b", "c"} {
		_, err := m.Insert(ctx, "audit_log", Row{"action": n})
		require.NoError(t, err)
	}

	rows, err := m.Select(ctx, "audit_log", Query{Limit: 2}.OrderDesc("id"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].String("action"))
	assert.Equal(t, "b", rows[1].String("action"))
}
