// Package executor runs validated GraphQL operations breadth-first against a
// schema.Schema, delegating every field value to a Runtime.
//
// # Execution model
//
// Fields are either synchronous (schema.Field.Async == false) or asynchronous.
// Synchronous fields read from the parent value without I/O and are resolved
// and completed immediately through Runtime.ResolveSync, so descending through
// them never adds depth. Asynchronous fields are queued as AsyncResolveTasks.
//
// Once the current depth has been expanded, every queued task is handed to
// Runtime.BatchResolveAsync in a single call. Completing those results may
// queue the next depth's tasks; the loop repeats until nothing is pending. For
// a query whose asynchronous nesting depth is d, BatchResolveAsync is called
// exactly d times.
//
// Mutation root fields run one at a time: each root field, together with all
// of its nested asynchronous work, finishes before the next begins.
//
// # Nulls and errors
//
// A resolver error becomes a located error at the field's response path and
// the field becomes null. Siblings are unaffected. When a Non-Null field
// yields null, the null moves to the nearest nullable ancestor and that
// ancestor's path is tombstoned: tasks still queued underneath it are dropped
// before the next batch.
//
// Errors that implement
//
//	Extensions() map[string]any
//
// contribute their map to the "extensions" member of the located error.
//
// # Scope
//
// Only object and scalar types exist. Fragments match when their type
// condition names the concrete object type. Subscriptions are rejected.
package executor
