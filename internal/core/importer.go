package core

// importer.go reconciles parsed CSV rows into the catalog.
//
// Each row is matched to an existing row by natural key (name, scoped by
// make_id for models and optic_make_id for optics), then updated or
// inserted. References to parent rows are resolved by name against a
// snapshot taken once before the first row, so parents created earlier in
// the same batch are not visible. Every row runs in its own transaction and
// any failure, panics included, becomes a skip reason for that row only.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// ErrUnknownTable is returned for a table with no import definition.
var ErrUnknownTable = errors.New("unknown table")

// ImportResult is the outcome of one import batch.
type ImportResult struct {
	Table    string   `json:"table"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  []string `json:"skipped"`
}

// Total returns the number of rows processed.
func (r *ImportResult) Total() int {
	return r.Inserted + r.Updated + len(r.Skipped)
}

type rowOutcome int

const (
	rowInserted rowOutcome = iota + 1
	rowUpdated
)

// ImportRows upserts rows into table. Row failures are reported in Skipped
// and never abort the batch. An error is returned only when the table is
// unknown, the reference snapshot cannot be loaded, or ctx ends mid-batch;
// in the last case the partial result is returned with it.
func (s *Service) ImportRows(ctx context.Context, table string, rows []Record) (*ImportResult, error) {
	def, ok := Get(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	log := logging.FromContext(ctx).With("table", table)

	refs, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", table, err)
	}

	result := &ImportResult{Table: table, Skipped: []string{}}
	start := time.Now()
	log.Info("import started", "rows", len(rows))

	// whatever was written must become visible even if the batch is cut short
	defer s.invalidate()

	for i, rec := range rows {
		if err := ctx.Err(); err != nil {
			log.Warn("import interrupted", "processed", i, "error", err)
			s.auditImport(context.WithoutCancel(ctx), result)
			return result, err
		}

		outcome, err := s.importRow(ctx, def, rec, refs)
		if err != nil {
			reason := skipReason(i+1, rec, err)
			result.Skipped = append(result.Skipped, reason)
			log.Debug("row skipped", "row", i+1, "reason", reason)
			continue
		}
		switch outcome {
		case rowInserted:
			result.Inserted++
		case rowUpdated:
			result.Updated++
		}
	}

	s.auditImport(ctx, result)
	log.Info("import finished",
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", len(result.Skipped),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *Service) auditImport(ctx context.Context, result *ImportResult) {
	s.audit(ctx, AuditLogParams{
		Action:       ActionImport,
		TableKey:     result.Table,
		RowsAffected: result.Inserted + result.Updated,
		Details: map[string]any{
			"inserted": result.Inserted,
			"updated":  result.Updated,
			"skipped":  len(result.Skipped),
		},
	})
}

// skipReason names the row by its 1-based position and its name value.
func skipReason(n int, rec Record, err error) string {
	name := rec.Get("name")
	if name == "" {
		name = "no name"
	}
	return fmt.Sprintf("row %d (%s): %v", n, name, err)
}

// importRow builds and writes one record. It recovers from panics so one
// malformed row cannot take the batch down.
func (s *Service) importRow(ctx context.Context, def TableDefinition, rec Record, refs *Snapshot) (outcome rowOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = 0, fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	prepared, err := def.Build(rec, refs)
	if err != nil {
		return 0, err
	}
	if prepared.Name == "" {
		return 0, errors.New("name is required")
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		var werr error
		outcome, werr = upsert(ctx, tx, def.Info, prepared)
		return werr
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// upsert matches prepared by natural key and updates or inserts it. Join
// rows in OnInsert are created only for new rows and only when an identical
// join is not already stored.
func upsert(ctx context.Context, tx store.Store, info TableInfo, p Prepared) (rowOutcome, error) {
	filters := []store.Filter{store.Eq("name", p.Name)}
	if info.ScopeColumn != "" {
		filters = append(filters, store.Eq(info.ScopeColumn, p.Scope))
	}

	existing, err := tx.SelectOne(ctx, info.Key, store.Where(filters...))
	switch {
	case err == nil:
		if err := tx.Update(ctx, info.Key, existing.ID(), p.Row); err != nil {
			return 0, err
		}
		return rowUpdated, nil
	case !errors.Is(err, store.ErrNotFound):
		return 0, err
	}

	id, err := tx.Insert(ctx, info.Key, p.Row)
	if err != nil {
		return 0, err
	}
	for _, link := range p.OnInsert {
		row := link.Row.Clone()
		row[link.OwnerColumn] = id
		if err := insertLinkIfAbsent(ctx, tx, link.Table, row); err != nil {
			return 0, fmt.Errorf("link %s: %w", link.Table, err)
		}
	}
	return rowInserted, nil
}

// insertLinkIfAbsent inserts a join row unless one with the same column
// values exists.
func insertLinkIfAbsent(ctx context.Context, st store.Store, table string, row store.Row) error {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	filters := make([]store.Filter, len(cols))
	for i, c := range cols {
		filters[i] = store.Eq(c, row[c])
	}

	_, err := st.SelectOne(ctx, table, store.Where(filters...))
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	_, err = st.Insert(ctx, table, row)
	return err
}
