package tables

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/store"
)

var errNegativeMSRP = errors.New("msrp must not be negative")

// ParseSolar reads the solar flag. "true" and "1" (any case) are true,
// anything else is false.
func ParseSolar(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || s == "1"
}

// ParseMSRP parses a price. Empty means unknown and returns nil. A leading
// "$" and thousands separators are tolerated.
func ParseMSRP(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	clean := strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q for msrp", s)
	}
	if f < 0 {
		return nil, errNegativeMSRP
	}
	return &f, nil
}

// required returns the value of col or a skip error when it is empty.
func required(rec core.Record, col string) (string, error) {
	v := rec.Get(col)
	if v == "" {
		return "", fmt.Errorf("%s is required", col)
	}
	return v, nil
}

// setOptional copies col into row when the file has that column. Columns
// the file does not carry are left untouched on update.
func setOptional(row store.Row, rec core.Record, col string, normalize func(string) string) {
	v, ok := rec[col]
	if !ok {
		return
	}
	if normalize != nil {
		v = normalize(v)
	}
	row[col] = v
}

// sanitizeNotes strips markup from free text.
func sanitizeNotes(s string) string {
	return core.SanitizeText(s)
}
