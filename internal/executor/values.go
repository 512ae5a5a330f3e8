package executor

import (
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/usergraph/internal/language"
	schema "github.com/hanpama/usergraph/internal/schema"
)

// coerceVariableValues coerces provided variables against the operation's
// variable definitions. Variables that are neither provided nor defaulted are
// left out so that arguments referring to them count as absent.
func coerceVariableValues(operation *language.OperationDefinition, variableValues map[string]any) (map[string]any, error) {
	coerced := make(map[string]any)
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if varDef.DefaultValue != nil {
				dv, err := varDef.DefaultValue.Value(nil)
				if err != nil {
					return nil, fmt.Errorf("variable $%s has an invalid default: %v", name, err)
				}
				val = dv
			} else if t.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceValue(val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces the arguments of one field. A missing optional
// argument is absent from the result, never an error.
func coerceArgumentValues(state *executionState, fieldDef *schema.Field, arguments language.ArgumentList, path Path) map[string]any {
	coerced := make(map[string]any)
	for _, argDef := range fieldDef.Arguments {
		name := argDef.Name
		arg := arguments.ForName(name)

		provided := arg != nil
		if provided && arg.Value.Kind == language.Variable {
			_, provided = state.variableValues[arg.Value.Raw]
		}
		if !provided {
			if argDef.DefaultValue != nil {
				coerced[name] = argDef.DefaultValue
			} else if schema.IsNonNull(argDef.Type) {
				state.addError(fmt.Sprintf("argument '%s' of required type %s was not provided", name, argDef.Type), path)
			}
			continue
		}

		raw, err := arg.Value.Value(state.variableValues)
		if err != nil {
			state.addError(fmt.Sprintf("argument '%s' is invalid: %v", name, err), path)
			continue
		}
		cv, err := coerceValue(raw, argDef.Type)
		if err != nil {
			state.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", name, err), path)
			continue
		}
		coerced[name] = cv
	}
	return coerced
}

// coerceValue coerces an input value to the given type.
func coerceValue(value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return coerceValue(value, schema.Unwrap(targetType))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(targetType) {
		inner := schema.Unwrap(targetType)
		items, ok := value.([]any)
		if !ok {
			// A single value is a list of one.
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := coerceValue(item, inner)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	switch schema.GetNamedType(targetType) {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	default:
		return value, nil
	}
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}

// coerceToString accepts strings only; string arguments are passed through
// untouched.
func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to string", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	var inner *schema.TypeRef
	if t.Elem != nil {
		inner = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		inner = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(inner)
	}
	return inner
}
