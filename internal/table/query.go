package table

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// MaxFilterRows caps the rows returned by FilterRows.
const MaxFilterRows = 10

type Operator string

const (
	OpGreater Operator = ">"
	OpLess    Operator = "<"
	OpEqual   Operator = "=="
)

func (op Operator) Valid() bool {
	switch op {
	case OpGreater, OpLess, OpEqual:
		return true
	}
	return false
}

func (op Operator) apply(a, b float64) bool {
	switch op {
	case OpGreater:
		return a > b
	case OpLess:
		return a < b
	default:
		return a == b
	}
}

type Overview struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// GroupMean is one group of a GroupAverage result. Mean is nil when the
// group has no non-null target values.
type GroupMean struct {
	Group string
	Mean  *float64
}

// GroupMeans keeps result order when encoded as a JSON object.
type GroupMeans []GroupMean

func (g GroupMeans) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, gm := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(gm.Group)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if gm.Mean == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(*gm.Mean)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Row map[string]any

func (t *Table) ListColumns() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

func (t *Table) Overview() Overview {
	return Overview{Rows: t.rows, Columns: t.ListColumns()}
}

// Average returns the mean of the non-null values of a numeric column.
func (t *Table) Average(column string) (float64, error) {
	i, err := t.numericColumn(column)
	if err != nil {
		return 0, err
	}
	mean, ok := meanOf(t.cells[i], nil)
	if !ok {
		return 0, &ColumnError{Column: column, Reason: ReasonNoValues}
	}
	return mean, nil
}

// GroupAverage averages target per distinct non-null value of groupBy,
// highest mean first. Equal means are ordered by group key.
func (t *Table) GroupAverage(groupBy, target string) (GroupMeans, error) {
	gi, _, ok := t.column(groupBy)
	if !ok {
		return nil, &ColumnError{Column: groupBy, Reason: ReasonMissing}
	}
	ti, err := t.numericColumn(target)
	if err != nil {
		return nil, err
	}

	members := make(map[string][]int)
	var keys []string
	for r, cell := range t.cells[gi] {
		if cell == nil {
			continue
		}
		key := formatCell(cell)
		if _, seen := members[key]; !seen {
			keys = append(keys, key)
		}
		members[key] = append(members[key], r)
	}
	sort.Strings(keys)

	out := make(GroupMeans, 0, len(keys))
	for _, key := range keys {
		gm := GroupMean{Group: key}
		if mean, ok := meanOf(t.cells[ti], members[key]); ok {
			gm.Mean = &mean
		}
		out = append(out, gm)
	}

	sort.SliceStable(out, func(a, b int) bool {
		ma, mb := out[a].Mean, out[b].Mean
		switch {
		case ma == nil:
			return false
		case mb == nil:
			return true
		default:
			return *ma > *mb
		}
	})
	return out, nil
}

// FilterRows returns up to MaxFilterRows rows, in table order, whose
// numeric column satisfies "column op value". Null cells never match.
func (t *Table) FilterRows(column string, op Operator, value float64) ([]Row, error) {
	i, err := t.numericColumn(column)
	if err != nil {
		return nil, err
	}
	if !op.Valid() {
		return nil, &ColumnError{Column: column, Reason: ReasonOperator, Operator: string(op)}
	}

	out := make([]Row, 0)
	for r, cell := range t.cells[i] {
		if len(out) == MaxFilterRows {
			break
		}
		v, ok := cell.(float64)
		if !ok || !op.apply(v, value) {
			continue
		}
		out = append(out, t.row(r))
	}
	return out, nil
}

func (t *Table) row(r int) Row {
	row := make(Row, len(t.columns))
	for i, c := range t.columns {
		row[c.Name] = t.cells[i][r]
	}
	return row
}

// meanOf averages the float cells at rows (all rows when rows is nil).
func meanOf(cells []any, rows []int) (float64, bool) {
	var sum float64
	n := 0
	add := func(cell any) {
		if v, ok := cell.(float64); ok && !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if rows == nil {
		for _, c := range cells {
			add(c)
		}
	} else {
		for _, r := range rows {
			add(cells[r])
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}
