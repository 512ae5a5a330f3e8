package executor

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	language "github.com/hanpama/usergraph/internal/language"
	schema "github.com/hanpama/usergraph/internal/schema"
)

type Path []PathElement

type PathElement any

// executionState holds the state of one request.
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	pending        []asyncTask
	errors         []GraphQLError
	// response paths that were replaced by null; queued work below them is dropped
	nullified map[string]struct{}
}

// asyncTask is a queued async field resolution.
type asyncTask struct {
	Task         AsyncResolveTask
	ResponsePath Path
	// NullTarget is where a null lands when the field is Non-Null and fails.
	NullTarget Path
	FieldType  *schema.TypeRef
	Fields     []*language.Field
}

type asyncPending struct{}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// ExecuteRequest executes the selected operation of document. The document is
// assumed to be valid for the schema.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := getOperation(document, operationName)
	if operation == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	coercedVariableValues, err := coerceVariableValues(operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	default:
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}
	}
	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}
	}

	state := &executionState{
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: coercedVariableValues,
		context:        ctx,
		errors:         []GraphQLError{},
		nullified:      make(map[string]struct{}),
	}

	data := make(map[string]any)
	grouped := collectFields(state, rootType, operation.SelectionSet)

	if operation.Operation == language.Mutation {
		// Root mutation fields run one at a time, each to completion.
		for _, cf := range grouped.orderedFields() {
			executeCollectedField(state, rootType, initialValue, cf, Path{}, nil, data)
			drainAsync(state, data)
		}
	} else {
		for _, cf := range grouped.orderedFields() {
			executeCollectedField(state, rootType, initialValue, cf, Path{}, nil, data)
		}
		drainAsync(state, data)
	}

	return &ExecutionResult{Data: data, Errors: state.errors}
}

// drainAsync runs the depth-wise batch loop until no async work remains.
func drainAsync(state *executionState, data map[string]any) {
	for len(state.pending) > 0 {
		tasks, results := flushAsyncTasks(state)
		for i, r := range results {
			completeAsyncField(state, tasks[i], r, data)
		}
	}
}

// executeSelectionSet executes a selection set on one object value. It
// returns nil when a Non-Null child resolved to null.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path, nullTarget Path) map[string]any {
	grouped := collectFields(state, objectType, selectionSet)
	resultMap := make(map[string]any, len(grouped.fields))
	for _, cf := range grouped.orderedFields() {
		if !executeCollectedField(state, objectType, objectValue, cf, path, nullTarget, resultMap) {
			state.markNullified(path)
			return nil
		}
	}
	return resultMap
}

// executeCollectedField resolves one response key into resultMap. It reports
// false when the field is Non-Null, resolved to null, and is not a root field.
func executeCollectedField(state *executionState, objectType *schema.Type, objectValue any, cf collectedField, path Path, nullTarget Path, resultMap map[string]any) bool {
	fields := cf.Fields
	fieldPath := appendPath(path, cf.ResponseName)

	if fields[0].Name == "__typename" {
		resultMap[cf.ResponseName] = objectType.Name
		return true
	}

	fieldDef := objectType.Field(fields[0].Name)
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fields[0].Name, objectType.Name), fieldPath)
		return true
	}

	result := executeField(state, objectType, fieldDef, objectValue, fields, fieldPath, nullTarget)
	if isNullish(result) {
		if schema.IsNonNull(fieldDef.Type) && len(path) > 0 {
			return false
		}
		resultMap[cf.ResponseName] = nil
		return true
	}
	resultMap[cf.ResponseName] = result
	return true
}

func executeField(state *executionState, objectType *schema.Type, fieldDef *schema.Field, objectValue any, fields []*language.Field, path Path, parentTarget Path) any {
	argumentValues := coerceArgumentValues(state, fieldDef, fields[0].Arguments, path)

	// Root fields absorb their own nulls.
	if len(parentTarget) == 0 {
		parentTarget = path
	}

	if !fieldDef.Async {
		resolved := resolveSyncField(state, objectType.Name, fieldDef.Name, objectValue, argumentValues, path)
		return completeValue(state, fieldDef.Type, fields, resolved, path, parentTarget)
	}

	target := path
	if schema.IsNonNull(fieldDef.Type) {
		target = parentTarget
	}
	state.pending = append(state.pending, asyncTask{
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      fieldDef.Name,
			Source:     objectValue,
			Args:       argumentValues,
		},
		ResponsePath: path,
		NullTarget:   target,
		FieldType:    fieldDef.Type,
		Fields:       fields,
	})
	return asyncPending{}
}

// flushAsyncTasks runs the queued tasks that are still live.
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	live := make([]asyncTask, 0, len(state.pending))
	for _, at := range state.pending {
		if state.hasNullifiedPrefix(at.ResponsePath) {
			continue
		}
		live = append(live, at)
	}
	state.pending = nil
	if len(live) == 0 {
		return nil, nil
	}

	tasks := make([]AsyncResolveTask, len(live))
	for i, at := range live {
		tasks[i] = at.Task
	}
	results := state.runtime.BatchResolveAsync(state.context, tasks)
	if len(results) != len(tasks) {
		panic(fmt.Sprintf("BatchResolveAsync returned %d results for %d tasks", len(results), len(tasks)))
	}
	return live, results
}

// completeAsyncField writes one async result into the response tree.
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, data map[string]any) {
	path := at.ResponsePath
	if state.hasNullifiedPrefix(path) {
		return
	}

	if res.Error != nil {
		state.errors = append(state.errors, NewLocatedError(res.Error, path))
		state.nullify(data, at, path)
		return
	}

	completed := completeValue(state, at.FieldType, at.Fields, res.Value, path, at.NullTarget)
	if isNullish(completed) {
		state.nullify(data, at, path)
		return
	}
	setValueAtPath(data, path, completed)
}

// nullify writes null for a failed async field, propagating to its null
// target when the field is Non-Null.
func (s *executionState) nullify(data map[string]any, at asyncTask, path Path) {
	if schema.IsNonNull(at.FieldType) {
		setValueAtPath(data, at.NullTarget, nil)
		s.markNullified(at.NullTarget)
		return
	}
	setValueAtPath(data, path, nil)
}

// completeValue completes result for a position of type fieldType. parentTarget
// is where a null lands if this position is Non-Null.
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path, parentTarget Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		completed := completeNullable(state, schema.Unwrap(fieldType), fields, result, path, parentTarget)
		if isNullish(completed) {
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}
	return completeNullable(state, fieldType, fields, result, path, path)
}

// completeNullable completes a non-null result. childTarget is where a null
// from a Non-Null child lands.
func completeNullable(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path, childTarget Path) any {
	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path, childTarget)
	}

	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.errors = append(state.errors, NewLocatedError(err, path))
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		sub := mergeSelectionSets(fields)
		obj := executeSelectionSet(state, typeObj, sub, result, path, childTarget)
		if obj == nil {
			return nil
		}
		return obj
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path, childTarget Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, fields, item, appendPath(path, i), childTarget)
		if schema.IsNonNull(inner) && isNullish(v) {
			return nil
		}
		completed[i] = v
	}
	return completed
}

func resolveSyncField(state *executionState, objectType string, fieldName string, source any, args map[string]any, path Path) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, fieldName, source, args)
	if err != nil {
		state.errors = append(state.errors, NewLocatedError(err, path))
		return nil
	}
	return value
}

func pathToString(path Path) string {
	var b strings.Builder
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func (s *executionState) markNullified(p Path) {
	if key := pathToString(p); key != "" {
		s.nullified[key] = struct{}{}
	}
}

func (s *executionState) hasNullifiedPrefix(p Path) bool {
	if len(s.nullified) == 0 {
		return false
	}
	for i := 1; i <= len(p); i++ {
		if _, ok := s.nullified[pathToString(p[:i])]; ok {
			return true
		}
	}
	return false
}

func (s *executionState) addError(message string, path Path) {
	s.errors = append(s.errors, GraphQLError{Message: message, Path: path})
}

func (s *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range s.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

// getOperation selects the operation by name, or the only operation when
// name is empty.
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

// setValueAtPath writes value into the response tree. Missing intermediate
// containers mean an ancestor was nulled, and the write is dropped.
func setValueAtPath(data map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	var current any = data
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			current = m[e]
		case int:
			s, ok := current.([]any)
			if !ok || e >= len(s) {
				return
			}
			current = s[e]
		}
	}
	switch last := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[last] = value
		}
	case int:
		if s, ok := current.([]any); ok && last < len(s) {
			s[last] = value
		}
	}
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
