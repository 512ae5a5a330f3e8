package executor

import (
	"context"
)

// Runtime is the host integration surface used by the Executor to obtain
// field values and serialize leaves.
//
// The Executor runs breadth-first. At each depth it drains all synchronous
// fields through ResolveSync, then calls BatchResolveAsync once with every
// async task collected at that depth. The next depth does not begin until
// BatchResolveAsync returns.
//
//   - objectType is the GraphQL type name (e.g. "User"); for root fields it is
//     the root type name.
//   - source is the parent object value (nil for root fields).
//   - args holds coerced argument values. An argument that was not supplied and
//     has no default is absent from the map.
//
// Errors returned from any method become located errors on the field. If the
// field is Non-Null the null propagates to the nearest nullable ancestor.
// Implementations must be safe for concurrent use and must not mutate source
// or args.
type Runtime interface {
	// ResolveSync resolves a field with Async == false. It must not block on
	// I/O. Return (nil, nil) to produce null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of async field tasks.
	//
	// Requirements:
	// - Return len(results) == len(tasks).
	// - results[i] corresponds to tasks[i].
	// - A failure is reported per element and never fails the whole batch.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// SerializeLeafValue coerces a scalar value to a JSON-safe Go value
	// (string, int, float64, bool).
	SerializeLeafValue(ctx context.Context, scalarTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (nil for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element; other elements in the
	// same batch are unaffected.
	Error error
}
