package tools

import (
	"fmt"

	"github.com/suPer8Hu/csv-agent/internal/ai"
)

// Kind is one of the fixed analytic operations a model may call.
type Kind string

const (
	ListColumns     Kind = "list_columns"
	DatasetOverview Kind = "dataset_overview"
	Average         Kind = "average"
	GroupAverage    Kind = "group_average"
	FilterRows      Kind = "filter_rows"
)

var kinds = []Kind{ListColumns, DatasetOverview, Average, GroupAverage, FilterRows}

func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

func ParseKind(name string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", &UnknownToolError{Name: name}
}

type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Unknown tool: %s", e.Name)
}

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var stringProp = map[string]any{"type": "string"}

// Definitions is the catalogue advertised to the model. Parameter names
// match the mapstructure tags of the argument structs in args.go.
func Definitions() []ai.ToolDefinition {
	return []ai.ToolDefinition{
		{
			Name:        string(ListColumns),
			Description: "List all columns in the CSV",
			Parameters:  object(map[string]any{}),
		},
		{
			Name:        string(DatasetOverview),
			Description: "Get dataset size and structure",
			Parameters:  object(map[string]any{}),
		},
		{
			Name:        string(Average),
			Description: "Compute average of a numeric column",
			Parameters:  object(map[string]any{"column": stringProp}, "column"),
		},
		{
			Name:        string(GroupAverage),
			Description: "Average a numeric column grouped by another column",
			Parameters: object(map[string]any{
				"group_by": stringProp,
				"target":   stringProp,
			}, "group_by", "target"),
		},
		{
			Name:        string(FilterRows),
			Description: "Filter rows using numeric condition",
			Parameters: object(map[string]any{
				"column":   stringProp,
				"operator": map[string]any{"type": "string", "enum": []string{">", "<", "=="}},
				"value":    map[string]any{"type": "number"},
			}, "column", "operator", "value"),
		},
	}
}
