package table

import "fmt"

type Reason string

const (
	ReasonMissing    Reason = "not found"
	ReasonNotNumeric Reason = "is not numeric"
	ReasonNoValues   Reason = "has no numeric values"
	ReasonOperator   Reason = "unsupported operator"
)

// ColumnError reports a column that cannot serve the requested operation.
type ColumnError struct {
	Column   string
	Reason   Reason
	Operator string
}

func (e *ColumnError) Error() string {
	if e.Reason == ReasonOperator {
		return fmt.Sprintf("column %q: unsupported operator %q (want >, < or ==)", e.Column, e.Operator)
	}
	return fmt.Sprintf("column %q %s", e.Column, e.Reason)
}
