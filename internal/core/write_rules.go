package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/store"
)

type columnKind int

const (
	kindText columnKind = iota
	kindNotes
	kindURL
	kindRef
	kindFit
	kindMount
	kindMoney
	kindBool
)

type columnRule struct {
	kind     columnKind
	ref      string // referenced table for kindRef
	required bool
}

// tableRules is the allow-list of columns the generic editor may write.
type tableRules struct {
	columns map[string]columnRule
	create  bool
	update  bool
}

var (
	nameRule = columnRule{kind: kindText, required: true}
	noteRule = columnRule{kind: kindNotes}
	textRule = columnRule{kind: kindText}
	urlRule  = columnRule{kind: kindURL}
)

func refRule(table string) columnRule {
	return columnRule{kind: kindRef, ref: table, required: true}
}

var writeRules = map[string]tableRules{
	catalog.TableMakes: {
		columns: map[string]columnRule{"name": nameRule},
		create:  true,
		update:  true,
	},
	catalog.TableOpticMakes: {
		columns: map[string]columnRule{"name": nameRule},
		create:  true,
		update:  true,
	},
	catalog.TableFootprints: {
		columns: map[string]columnRule{"name": nameRule, "description": noteRule},
		create:  true,
		update:  true,
	},
	catalog.TableModels: {
		columns: map[string]columnRule{
			"name":     nameRule,
			"make_id":  refRule(catalog.TableMakes),
			"fit_type": {kind: kindFit},
			"notes":    noteRule,
		},
		update: true,
	},
	catalog.TableOptics: {
		columns: map[string]columnRule{
			"name":             nameRule,
			"optic_make_id":    refRule(catalog.TableOpticMakes),
			"sku":              textRule,
			"msrp":             {kind: kindMoney},
			"reticle":          textRule,
			"mount_type":       {kind: kindMount},
			"battery_type":     textRule,
			"solar":            {kind: kindBool},
			"affiliate_url":    urlRule,
			"manufacturer_url": urlRule,
			"image_url":        textRule,
			"notes":            noteRule,
		},
		update: true,
	},
	catalog.TablePlates: {
		columns: map[string]columnRule{
			"name":         nameRule,
			"model_id":     refRule(catalog.TableModels),
			"footprint_id": refRule(catalog.TableFootprints),
			"purchase_url": urlRule,
			"notes":        noteRule,
		},
		update: true,
	},
	catalog.TableModelFootprints: {},
	catalog.TableOpticFootprints: {
		columns: map[string]columnRule{
			"optic_id":     refRule(catalog.TableOptics),
			"footprint_id": refRule(catalog.TableFootprints),
		},
		create: true,
	},
	catalog.TableOpticModelCompat: {
		columns: map[string]columnRule{
			"optic_id": refRule(catalog.TableOptics),
			"model_id": refRule(catalog.TableModels),
		},
		create: true,
	},
}

func rulesFor(table string) (tableRules, error) {
	rules, ok := writeRules[table]
	if !ok {
		return tableRules{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return rules, nil
}

// coerce converts decoded form or JSON values into store values. With full
// set, every required column must be present; otherwise only the supplied
// columns are checked.
func (r tableRules) coerce(data map[string]any, full bool) (store.Row, error) {
	var ve ValidationErrors
	row := make(store.Row, len(data))

	for col, v := range data {
		rule, ok := r.columns[col]
		if !ok {
			ve.Add(col, "column cannot be written")
			continue
		}
		val, err := coerceValue(rule, v)
		if err != nil {
			ve.Add(col, err.Error())
			continue
		}
		if rule.required && isBlank(val) {
			ve.Add(col, col+" is required")
			continue
		}
		row[col] = val
	}

	if full {
		var missing []string
		for col, rule := range r.columns {
			if _, ok := data[col]; rule.required && !ok {
				missing = append(missing, col)
			}
		}
		sort.Strings(missing)
		for _, col := range missing {
			ve.Add(col, col+" is required")
		}
	}

	if err := ve.Err(); err != nil {
		return nil, err
	}
	return row, nil
}

// checkRefs verifies that every reference column in row points at a stored row.
func (r tableRules) checkRefs(ctx context.Context, st store.Store, row store.Row) error {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var ve ValidationErrors
	for _, col := range cols {
		rule := r.columns[col]
		if rule.kind != kindRef {
			continue
		}
		if err := requireRows(ctx, st, rule.ref, row.Int64(col)); err != nil {
			if !isMissing(err) {
				return err
			}
			ve.Add(col, err.Error())
		}
	}
	return ve.Err()
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int64:
		return x == 0
	}
	return false
}

func coerceValue(rule columnRule, v any) (any, error) {
	switch rule.kind {
	case kindText:
		s, err := asString(v)
		return strings.TrimSpace(s), err

	case kindNotes:
		s, err := asString(v)
		return SanitizeText(s), err

	case kindURL:
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s != "" {
			if err := validate.Var(s, "http_url"); err != nil {
				return nil, fmt.Errorf("must be an http(s) URL")
			}
		}
		return s, nil

	case kindRef:
		id, ok := asInt64(v)
		if !ok || id < 0 {
			return nil, fmt.Errorf("must be a positive id")
		}
		return id, nil

	case kindFit:
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		fit, err := catalog.ParseFitType(s)
		if err != nil {
			return nil, err
		}
		return fit.String(), nil

	case kindMount:
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		mount, err := catalog.ParseMountType(s)
		if err != nil {
			return nil, err
		}
		return mount.String(), nil

	case kindMoney:
		f, present, err := asFloat(v)
		if err != nil || !present {
			return nil, err
		}
		if f < 0 {
			return nil, fmt.Errorf("msrp cannot be negative")
		}
		return f, nil

	case kindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			s := strings.ToLower(strings.TrimSpace(x))
			return s == "true" || s == "1" || s == "on", nil
		case nil:
			return false, nil
		}
		return nil, fmt.Errorf("must be true or false")
	}
	return nil, fmt.Errorf("unsupported column")
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	}
	return "", fmt.Errorf("must be text")
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// asFloat reports present=false for null or blank values, which clear the column.
func asFloat(v any) (float64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return x, true, nil
	case int64:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("must be a number")
		}
		return f, true, nil
	case string:
		s := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(x))
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false, fmt.Errorf("must be a number")
		}
		return f, true, nil
	}
	return 0, false, fmt.Errorf("must be a number")
}
