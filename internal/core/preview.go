package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/opticfit/internal/store"
)

// PreviewSummary contains the counts an import would produce.
type PreviewSummary struct {
	TotalRows       int `json:"total_rows"`
	NewRows         int `json:"new_rows"`
	UpdateRows      int `json:"update_rows"`
	ErrorRows       int `json:"error_rows"`
	DuplicateInFile int `json:"duplicate_in_file"`
}

// RowPreview is a row that would be inserted.
type RowPreview struct {
	Row    int               `json:"row"`
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}

// UpdateDiff is a row that would update a stored one, with the columns whose
// value changes.
type UpdateDiff struct {
	Row      int               `json:"row"`
	Name     string            `json:"name"`
	Current  map[string]string `json:"current"`
	Incoming map[string]string `json:"incoming"`
	Changed  []string          `json:"changed"`
}

// ErrorPreview is a row that would be skipped.
type ErrorPreview struct {
	Row    int    `json:"row"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// DuplicatePreview lists rows sharing one natural key. The last one wins.
type DuplicatePreview struct {
	Name string `json:"name"`
	Rows []int  `json:"rows"`
}

// PreviewResponse is the read-only analysis of an import.
type PreviewResponse struct {
	Table            string             `json:"table"`
	Summary          PreviewSummary     `json:"summary"`
	NewRowSamples    []RowPreview       `json:"new_row_samples"`
	UpdateDiffs      []UpdateDiff       `json:"update_diffs"`
	ErrorSamples     []ErrorPreview     `json:"error_samples"`
	DuplicateSamples []DuplicatePreview `json:"duplicate_samples"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// Sample limits
const (
	maxNewRowSamples    = 10
	maxUpdateDiffs      = 10
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// PreviewCSV parses r like ImportCSV and reports what importing it would do,
// without writing anything.
func (s *Service) PreviewCSV(ctx context.Context, table string, r io.Reader, maxBytes int64) (*PreviewResponse, error) {
	def, ok := Get(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	records, header, err := ParseCSV(WrapCSVReader(r, maxBytes))
	if err != nil {
		return nil, err
	}
	if err := checkHeader(def, header); err != nil {
		return nil, err
	}
	return s.PreviewRows(ctx, table, records)
}

// PreviewRows classifies rows the way ImportRows would: new, update or
// skipped. Rows in one batch sharing a natural key are reported as
// duplicates; importing them updates the same stored row twice.
func (s *Service) PreviewRows(ctx context.Context, table string, rows []Record) (*PreviewResponse, error) {
	start := time.Now()

	def, ok := Get(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	refs, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", table, err)
	}

	resp := &PreviewResponse{
		Table:            table,
		Summary:          PreviewSummary{TotalRows: len(rows)},
		NewRowSamples:    []RowPreview{},
		UpdateDiffs:      []UpdateDiff{},
		ErrorSamples:     []ErrorPreview{},
		DuplicateSamples: []DuplicatePreview{},
	}

	type seenKey struct {
		scope int64
		name  string
	}
	seen := make(map[seenKey][]int)
	var order []seenKey

	for i, rec := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := i + 1

		p, err := def.Build(rec, refs)
		if err == nil && p.Name == "" {
			err = errors.New("name is required")
		}
		if err != nil {
			resp.Summary.ErrorRows++
			if len(resp.ErrorSamples) < maxErrorSamples {
				resp.ErrorSamples = append(resp.ErrorSamples, ErrorPreview{Row: n, Name: rec.Get("name"), Reason: err.Error()})
			}
			continue
		}

		key := seenKey{scope: p.Scope, name: p.Name}
		if _, dup := seen[key]; !dup {
			order = append(order, key)
		}
		seen[key] = append(seen[key], n)

		filters := []store.Filter{store.Eq("name", p.Name)}
		if def.Info.ScopeColumn != "" {
			filters = append(filters, store.Eq(def.Info.ScopeColumn, p.Scope))
		}
		current, err := s.store.SelectOne(ctx, def.Info.Key, store.Where(filters...))
		switch {
		case errors.Is(err, store.ErrNotFound):
			resp.Summary.NewRows++
			if len(resp.NewRowSamples) < maxNewRowSamples {
				resp.NewRowSamples = append(resp.NewRowSamples, RowPreview{Row: n, Name: p.Name, Values: previewValues(p.Row)})
			}
		case err != nil:
			return nil, fmt.Errorf("preview %s: %w", table, err)
		default:
			resp.Summary.UpdateRows++
			if len(resp.UpdateDiffs) < maxUpdateDiffs {
				resp.UpdateDiffs = append(resp.UpdateDiffs, diffRow(n, p, current))
			}
		}
	}

	for _, key := range order {
		lines := seen[key]
		if len(lines) < 2 {
			continue
		}
		resp.Summary.DuplicateInFile += len(lines) - 1
		if len(resp.DuplicateSamples) < maxDuplicateSamples {
			resp.DuplicateSamples = append(resp.DuplicateSamples, DuplicatePreview{Name: key.name, Rows: lines})
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

// diffRow compares the columns an import would write against the stored row.
func diffRow(n int, p Prepared, current store.Row) UpdateDiff {
	incoming := previewValues(p.Row)
	cur := make(map[string]string, len(incoming))
	var changed []string
	for col, v := range incoming {
		cur[col] = formatValueForPreview(current[col])
		if cur[col] != v {
			changed = append(changed, col)
		}
	}
	sort.Strings(changed)
	return UpdateDiff{Row: n, Name: p.Name, Current: cur, Incoming: incoming, Changed: changed}
}

func previewValues(row store.Row) map[string]string {
	out := make(map[string]string, len(row))
	for col, v := range row {
		out[col] = formatValueForPreview(v)
	}
	return out
}

// formatValueForPreview renders a stored or prepared value for display.
func formatValueForPreview(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case *float64:
		if val == nil {
			return ""
		}
		return formatValueForPreview(*val)
	case float64:
		s := fmt.Sprintf("%.2f", val)
		s = strings.TrimRight(s, "0")
		return strings.TrimRight(s, ".")
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case time.Time:
		return val.Format("2006-01-02")
	}
	return exportValue(v)
}
