package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/opticfit/internal/logging"
)

var (
	// ErrEmptyFile is returned for a CSV without a header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrInvalidCSV wraps parse failures from encoding/csv.
	ErrInvalidCSV = errors.New("invalid csv")

	// ErrMissingColumns is returned when the header lacks a required column.
	ErrMissingColumns = errors.New("missing required column(s)")
)

// ParseCSV reads a CSV with a header row into records. Header names are
// lowercased and trimmed, values are trimmed. Rows shorter than the header
// are padded with empty values, extra cells are ignored and blank lines are
// skipped.
func ParseCSV(r io.Reader) ([]Record, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, csvError(err)
	}

	header := make([]string, len(head))
	for i, h := range head {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, csvError(err)
		}
		if blankRow(row) {
			continue
		}

		rec := make(Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, header, nil
}

func csvError(err error) error {
	if errors.Is(err, ErrFileTooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidCSV, err)
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// checkHeader reports required import columns missing from header.
func checkHeader(def TableDefinition, header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range def.RequiredColumns() {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// ImportCSV parses r and reconciles its rows into table. It waits for an
// import slot and applies the configured batch timeout. maxBytes <= 0 means
// no size limit.
func (s *Service) ImportCSV(ctx context.Context, table string, r io.Reader, maxBytes int64) (*ImportResult, error) {
	def, ok := Get(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	if err := s.imports.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.imports.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ImportTimeout)
	defer cancel()

	start := time.Now()
	records, header, err := ParseCSV(WrapCSVReader(r, maxBytes))
	if err != nil {
		return nil, err
	}
	if err := checkHeader(def, header); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("csv parsed",
		"table", table,
		"rows", len(records),
		"parse_ms", time.Since(start).Milliseconds(),
	)
	return s.ImportRows(ctx, table, records)
}
