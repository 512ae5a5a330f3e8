package graph

import (
	"fmt"
	"math"
	"strconv"

	schema "github.com/hanpama/usergraph/internal/schema"
)

// ScalarConfig declares a scalar type.
type ScalarConfig struct {
	Name        string
	Description string
	// Serialize converts a resolved value to a JSON-safe value.
	Serialize func(value any) (any, error)
}

// Scalar is a leaf type.
type Scalar struct {
	name        string
	description string
	serialize   func(any) (any, error)
}

// NewScalar declares a custom scalar. A nil Serialize passes values through.
func NewScalar(cfg ScalarConfig) *Scalar {
	ser := cfg.Serialize
	if ser == nil {
		ser = func(v any) (any, error) { return v, nil }
	}
	return &Scalar{name: cfg.Name, description: cfg.Description, serialize: ser}
}

func (s *Scalar) Name() string         { return s.name }
func (s *Scalar) String() string       { return s.name }
func (s *Scalar) ref() *schema.TypeRef { return schema.NamedType(s.name) }

// Built-in scalars.
var (
	String  = &Scalar{name: "String", serialize: serializeString}
	Int     = &Scalar{name: "Int", serialize: serializeInt}
	Float   = &Scalar{name: "Float", serialize: serializeFloat}
	Boolean = &Scalar{name: "Boolean", serialize: serializeBoolean}
	ID      = &Scalar{name: "ID", serialize: serializeID}
)

var builtinScalars = map[string]*Scalar{
	String.name:  String,
	Int.name:     Int,
	Float.name:   Float,
	Boolean.name: Boolean,
	ID.name:      ID,
}

func serializeString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return nil, fmt.Errorf("String cannot represent value: %v", v)
}

func serializeInt(v any) (any, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
		}
		n = int64(x)
	case string:
		p, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %q", x)
		}
		n = p
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("Int cannot represent value: %v", v)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", n)
	}
	return int(n), nil
}

func serializeFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %q", x)
		}
		return f, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return nil, fmt.Errorf("Float cannot represent value: %v", v)
}

func serializeBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	}
	return nil, fmt.Errorf("Boolean cannot represent value: %v", v)
}

func serializeID(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10), nil
		}
	}
	return nil, fmt.Errorf("ID cannot represent value: %v", v)
}
