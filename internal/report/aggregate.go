// Package report turns raw submission content into chart-ready result rows.
// Aggregation is a pure function of its ordered input: no I/O, no shared
// state, safe to run concurrently for independent reports.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ChartType selects the aggregation shape.
type ChartType string

const (
	Pie     ChartType = "pie"
	Bar     ChartType = "bar"
	Line    ChartType = "line"
	Tabular ChartType = "tabular"
)

var (
	ErrMissingXKey      = errors.New("xKey is required")
	ErrMissingYKey      = errors.New("yKey is required for this chart type")
	ErrUnknownChartType = errors.New("unknown chart type")
)

// ParseChartType validates a chart type tag.
func ParseChartType(s string) (ChartType, error) {
	switch ChartType(s) {
	case Pie, Bar, Line, Tabular:
		return ChartType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChartType, s)
}

// Row is one result row with a stable column order. Column sets vary per row
// in categorical bar/line mode, so rows carry their own column list.
type Row struct {
	cols   []string
	values map[string]any
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: map[string]any{}}
}

// Set adds or replaces a column value, keeping first-set column order.
func (r *Row) Set(col string, v any) *Row {
	if _, ok := r.values[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.values[col] = v
	return r
}

// Get returns a column value.
func (r *Row) Get(col string) (any, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Columns returns the column names in insertion order.
func (r *Row) Columns() []string {
	return r.cols
}

// MarshalJSON emits the row as an object with columns in insertion order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Aggregate projects a set of decoded submission content objects onto a
// chart-ready result set. Group iteration order is first-seen order in the
// input sequence; rows with missing keys are dropped silently, never an
// error. Empty input yields an empty result.
func Aggregate(submissions []map[string]any, xKey, yKey string, chart ChartType) ([]*Row, error) {
	if xKey == "" {
		return nil, ErrMissingXKey
	}
	if yKey == "" && chart != Pie {
		return nil, ErrMissingYKey
	}

	switch chart {
	case Pie:
		return aggregatePie(submissions, xKey, yKey), nil
	case Tabular:
		return aggregateTabular(submissions, xKey, yKey), nil
	case Bar, Line:
		return aggregateSeries(submissions, xKey, yKey), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChartType, chart)
}

// aggregatePie counts occurrences per x label, optionally sub-labelled by y.
func aggregatePie(submissions []map[string]any, xKey, yKey string) []*Row {
	counts := map[string]int{}
	var order []string

	for _, entry := range submissions {
		label, ok := present(entry[xKey])
		if !ok {
			continue
		}
		if yKey != "" {
			if category, ok := present(entry[yKey]); ok {
				label = label + " - " + category
			}
		}
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}

	rows := make([]*Row, 0, len(order))
	for _, label := range order {
		rows = append(rows, NewRow().Set("name", label).Set("value", counts[label]))
	}
	return rows
}

// aggregateTabular emits one row per submission that carries both keys.
func aggregateTabular(submissions []map[string]any, xKey, yKey string) []*Row {
	rows := []*Row{}
	for _, entry := range submissions {
		x, okX := present(entry[xKey])
		y, okY := present(entry[yKey])
		if !okX || !okY {
			continue
		}
		rows = append(rows, NewRow().Set(xKey, x).Set(yKey, y))
	}
	return rows
}

// aggregateSeries handles bar and line charts. The whole series runs in
// numeric mode if any submission's y value parses as a finite number;
// otherwise each x group is pivoted into per-category count columns.
func aggregateSeries(submissions []map[string]any, xKey, yKey string) []*Row {
	numeric := false
	for _, entry := range submissions {
		if _, ok := parseNumber(entry[yKey]); ok {
			numeric = true
			break
		}
	}

	if numeric {
		sums := map[string]float64{}
		var order []string
		for _, entry := range submissions {
			x, okX := present(entry[xKey])
			y, okY := parseNumber(entry[yKey])
			if !okX || !okY {
				continue
			}
			if _, seen := sums[x]; !seen {
				order = append(order, x)
			}
			sums[x] += y
		}
		rows := make([]*Row, 0, len(order))
		for _, x := range order {
			rows = append(rows, NewRow().Set(xKey, x).Set(yKey, sums[x]))
		}
		return rows
	}

	counts := map[string]map[string]int{}
	var xOrder []string
	yOrder := map[string][]string{}
	for _, entry := range submissions {
		x, okX := present(entry[xKey])
		y, okY := present(entry[yKey])
		if !okX || !okY {
			continue
		}
		group, seen := counts[x]
		if !seen {
			group = map[string]int{}
			counts[x] = group
			xOrder = append(xOrder, x)
		}
		if _, seen := group[y]; !seen {
			yOrder[x] = append(yOrder[x], y)
		}
		group[y]++
	}

	rows := make([]*Row, 0, len(xOrder))
	for _, x := range xOrder {
		row := NewRow().Set(xKey, x)
		for _, y := range yOrder[x] {
			row.Set(y, counts[x][y])
		}
		rows = append(rows, row)
	}
	return rows
}

// present renders a submission value as a non-empty label. Missing keys,
// nil, empty strings, zero, and false all count as absent, matching the
// original engine's truthiness filter.
func present(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		return strconv.FormatBool(x), x
	case float64:
		if x == 0 {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		if x == 0 {
			return "", false
		}
		return strconv.Itoa(x), true
	case int64:
		if x == 0 {
			return "", false
		}
		return strconv.FormatInt(x, 10), true
	default:
		return fmt.Sprint(x), true
	}
}

// parseNumber extracts a finite numeric y value.
func parseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
