package policy

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/google/cel-go/common/types/ref"
)

// Names of the helpers every Policy exposes unless WithFunctionRegistry
// replaces them.
const (
	FuncTouches     = "touches"
	FuncConnections = "connections"
)

// BuiltinFunctions returns the knowledge store helpers:
//
//	touches(list, pattern)  true when any "connection.table" entry of list
//	                        matches the glob pattern, e.g. "pg.*"
//	connections(list)       sorted distinct connections named in list
func BuiltinFunctions() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{
		FuncTouches:     touches,
		FuncConnections: connections,
	}}
}

func touches(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("touches: want (list, pattern), got %d arguments", len(args))
	}
	items, err := stringList(FuncTouches, args[0])
	if err != nil {
		return nil, err
	}
	pattern, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("touches: pattern must be a string, got %T", args[1])
	}
	for _, item := range items {
		matched, err := path.Match(pattern, item)
		if err != nil {
			return nil, fmt.Errorf("touches: pattern %q: %w", pattern, err)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func connections(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("connections: want (list), got %d arguments", len(args))
	}
	items, err := stringList(FuncConnections, args[0])
	if err != nil {
		return nil, err
	}
	var names []string
	for _, item := range items {
		conn, _, _ := strings.Cut(item, ".")
		names = append(names, conn)
	}
	slices.Sort(names)
	names = slices.Compact(names)
	out := make([]any, len(names))
	for i, name := range names {
		out[i] = name
	}
	return out, nil
}

func stringList(fn string, value any) ([]string, error) {
	if v, ok := value.(ref.Val); ok {
		value = v.Value()
	}
	switch list := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if v, ok := item.(ref.Val); ok {
				item = v.Value()
			}
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: list holds %T, want strings", fn, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: want a list, got %T", fn, value)
	}
}
