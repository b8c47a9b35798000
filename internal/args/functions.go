package args

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

func builtinFunctions() map[string]govaluate.ExpressionFunction {
	return map[string]govaluate.ExpressionFunction{
		"len":      fnLen,
		"upper":    stringFn(strings.ToUpper),
		"lower":    stringFn(strings.ToLower),
		"trim":     stringFn(strings.TrimSpace),
		"coalesce": fnCoalesce,
	}
}

// fnLen returns the length of a string, list or map as a float64, the number type govaluate uses.
func fnLen(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len expects 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case string:
		return float64(len([]rune(v))), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	case nil:
		return 0.0, nil
	default:
		return nil, fmt.Errorf("len: unsupported type %T", v)
	}
}

func stringFn(f func(string) string) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", args[0])
		}
		return f(s), nil
	}
}

// fnCoalesce returns the first argument that is neither nil nor "".
func fnCoalesce(args ...any) (any, error) {
	for _, a := range args {
		if a == nil {
			continue
		}
		if s, ok := a.(string); ok && s == "" {
			continue
		}
		return a, nil
	}
	return nil, nil
}
