package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// ExportCSV writes every stored row of table as CSV. The header is the
// sorted union of stored columns. Foreign keys are written as raw ids, so an
// export is a backup rather than an import file; use Template for the
// import layout. Returns the number of data rows written.
func (s *Service) ExportCSV(ctx context.Context, table string, w io.Writer) (int, error) {
	if !catalog.IsCatalogTable(table) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	rows, err := s.store.Select(ctx, table, store.Query{})
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", table, err)
	}

	header := exportHeader(rows)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	record := make([]string, len(header))
	for _, r := range rows {
		for i, col := range header {
			record[i] = exportValue(r[col])
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// exportHeader puts id first and the remaining columns in name order.
func exportHeader(rows []store.Row) []string {
	seen := map[string]bool{"id": true}
	var cols []string
	for _, r := range rows {
		for c := range r {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return append([]string{"id"}, cols...)
}

func exportValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

// Template writes the header row expected by ImportCSV for table.
func Template(table string, w io.Writer) error {
	def, ok := Get(table)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(def.Info.Columns); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
