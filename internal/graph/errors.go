package graph

import "fmt"

// NotFoundError reports a lookup that matched nothing. A resolver returning
// it yields null and no error entry.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// PanicError is reported for a resolver that panicked.
type PanicError struct {
	ObjectType string
	Field      string
	Value      any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("resolver %s.%s panicked: %v", e.ObjectType, e.Field, e.Value)
}

func (e *PanicError) Extensions() map[string]any {
	return map[string]any{"code": "INTERNAL_SERVER_ERROR"}
}
