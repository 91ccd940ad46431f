package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/suPer8Hu/csv-agent/internal/table"
)

// ErrorPayload is returned in place of a result for tool names outside the catalogue.
type ErrorPayload struct {
	Error string `json:"error"`
}

type ColumnsResult struct {
	Columns []string `json:"columns"`
}

type AverageResult struct {
	Average float64 `json:"average"`
}

// Executor runs catalogue tools against one loaded table. It holds no
// mutable state and is safe for concurrent use.
type Executor struct {
	table  *table.Table
	logger *slog.Logger
}

func NewExecutor(t *table.Table, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{table: t, logger: logger}
}

// Execute runs the named tool. Unknown names produce an ErrorPayload and a
// nil error; argument and column failures are returned as errors.
func (e *Executor) Execute(ctx context.Context, name, rawArgs string) (any, error) {
	kind, err := ParseKind(name)
	if err != nil {
		var unknown *UnknownToolError
		if errors.As(err, &unknown) {
			e.logger.WarnContext(ctx, "unknown tool requested", slog.String("tool", name))
			return ErrorPayload{Error: unknown.Error()}, nil
		}
		return nil, err
	}

	e.logger.InfoContext(ctx, "tool called", slog.String("tool", string(kind)), slog.String("args", rawArgs))
	result, err := e.run(kind, rawArgs)
	if err != nil {
		e.logger.WarnContext(ctx, "tool failed", slog.String("tool", string(kind)), slog.Any("err", err))
		return nil, err
	}
	return result, nil
}

func (e *Executor) run(kind Kind, rawArgs string) (any, error) {
	switch kind {
	case ListColumns:
		return ColumnsResult{Columns: e.table.ListColumns()}, nil

	case DatasetOverview:
		return e.table.Overview(), nil

	case Average:
		var args AverageArgs
		if err := DecodeArgs(kind, rawArgs, &args); err != nil {
			return nil, err
		}
		if err := args.validate(); err != nil {
			return nil, err
		}
		avg, err := e.table.Average(args.Column)
		if err != nil {
			return nil, err
		}
		return AverageResult{Average: avg}, nil

	case GroupAverage:
		var args GroupAverageArgs
		if err := DecodeArgs(kind, rawArgs, &args); err != nil {
			return nil, err
		}
		if err := args.validate(); err != nil {
			return nil, err
		}
		return e.table.GroupAverage(args.GroupBy, args.Target)

	case FilterRows:
		var args FilterRowsArgs
		if err := DecodeArgs(kind, rawArgs, &args); err != nil {
			return nil, err
		}
		if err := args.validate(); err != nil {
			return nil, err
		}
		return e.table.FilterRows(args.Column, args.operator(), args.Value)
	}
	return nil, &UnknownToolError{Name: string(kind)}
}

// Encode serialises a tool result for a tool-role message.
func Encode(result any) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
