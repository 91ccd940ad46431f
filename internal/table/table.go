package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// nullTokens are cell values treated as missing.
var nullTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
}

type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Table is a read-only, column-typed view of a CSV file.
// Cells are stored per column: float64 for numeric columns, string otherwise,
// nil for missing values.
type Table struct {
	columns []Column
	index   map[string]int
	cells   [][]any
	rows    int
}

func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("table: load %s: %w", path, err)
	}
	return t, nil
}

func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	names := make([]string, len(headers))
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i+1)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		names[i] = name
		index[name] = i
	}

	raw := make([][]string, len(names))
	rows := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		for i, v := range rec {
			raw[i] = append(raw[i], strings.TrimSpace(v))
		}
		rows++
	}

	t := &Table{
		columns: make([]Column, len(names)),
		index:   index,
		cells:   make([][]any, len(names)),
		rows:    rows,
	}
	for i, name := range names {
		kind, cells := inferColumn(raw[i])
		t.columns[i] = Column{Name: name, Kind: kind}
		t.cells[i] = cells
	}
	return t, nil
}

// inferColumn types a column as numeric when every non-null cell parses as a float.
// Infinite values are kept as nulls so results stay JSON-encodable.
func inferColumn(values []string) (Kind, []any) {
	nums := make([]any, len(values))
	numeric := true
	for i, v := range values {
		if isNull(v) {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			break
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			continue
		}
		nums[i] = f
	}
	if numeric {
		return KindNumeric, nums
	}

	texts := make([]any, len(values))
	for i, v := range values {
		if isNull(v) {
			continue
		}
		texts[i] = v
	}
	return KindText, texts
}

func isNull(v string) bool {
	_, ok := nullTokens[v]
	return ok
}

func (t *Table) Len() int { return t.rows }

func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) column(name string) (int, Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return 0, Column{}, false
	}
	return i, t.columns[i], true
}

func (t *Table) numericColumn(name string) (int, error) {
	i, col, ok := t.column(name)
	if !ok {
		return 0, &ColumnError{Column: name, Reason: ReasonMissing}
	}
	if col.Kind != KindNumeric {
		return 0, &ColumnError{Column: name, Reason: ReasonNotNumeric}
	}
	return i, nil
}
