package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/suPer8Hu/csv-agent/internal/table"
)

// ArgumentError reports tool arguments that could not be decoded into the
// tool's parameter struct.
type ArgumentError struct {
	Tool Kind
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

type AverageArgs struct {
	Column string `mapstructure:"column"`
}

type GroupAverageArgs struct {
	GroupBy string `mapstructure:"group_by"`
	Target  string `mapstructure:"target"`
}

type FilterRowsArgs struct {
	Column   string  `mapstructure:"column"`
	Operator string  `mapstructure:"operator"`
	Value    float64 `mapstructure:"value"`
}

// DecodeArgs parses the model's JSON argument string into out. Scalars are
// weakly typed ("15" decodes into a float64) and every field of out is required.
// Null values, and blank or boolean values for numbers, are rejected.
func DecodeArgs(kind Kind, raw string, out any) error {
	input := map[string]any{}
	if s := strings.TrimSpace(raw); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &input); err != nil {
			return &ArgumentError{Tool: kind, Err: fmt.Errorf("malformed json: %w", err)}
		}
	}
	for key, v := range input {
		if v == nil {
			return &ArgumentError{Tool: kind, Err: fmt.Errorf("%s is null", key)}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnset:       true,
		DecodeHook:       mapstructure.DecodeHookFuncType(strictNumberHook),
	})
	if err != nil {
		return &ArgumentError{Tool: kind, Err: err}
	}
	if err := dec.Decode(input); err != nil {
		return &ArgumentError{Tool: kind, Err: err}
	}
	return nil
}

// strictNumberHook stops weak typing from turning "" or a bool into a number.
func strictNumberHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Float64 {
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		return nil, fmt.Errorf("expected a number, got %t", v)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, errors.New("expected a number, got an empty string")
		}
	}
	return data, nil
}

func requireColumn(kind Kind, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ArgumentError{Tool: kind, Err: fmt.Errorf("%s is required", field)}
	}
	return nil
}

func (a AverageArgs) validate() error {
	return requireColumn(Average, "column", a.Column)
}

func (a GroupAverageArgs) validate() error {
	if err := requireColumn(GroupAverage, "group_by", a.GroupBy); err != nil {
		return err
	}
	return requireColumn(GroupAverage, "target", a.Target)
}

func (a FilterRowsArgs) validate() error {
	return requireColumn(FilterRows, "column", a.Column)
}

func (a FilterRowsArgs) operator() table.Operator {
	return table.Operator(strings.TrimSpace(a.Operator))
}
