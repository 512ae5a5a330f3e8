package graph

import (
	"context"

	schema "github.com/hanpama/usergraph/internal/schema"
)

// Type is a field or argument type: a *Scalar, an *Object, or a List/NonNull
// wrapper around one of them.
type Type interface {
	String() string
	ref() *schema.TypeRef
}

type list struct{ of Type }

func (l *list) String() string       { return "[" + l.of.String() + "]" }
func (l *list) ref() *schema.TypeRef { return schema.ListType(l.of.ref()) }

type nonNull struct{ of Type }

func (n *nonNull) String() string       { return n.of.String() + "!" }
func (n *nonNull) ref() *schema.TypeRef { return schema.NonNullType(n.of.ref()) }

// List wraps t in a list.
func List(t Type) Type { return &list{of: t} }

// NonNull marks t as never null. Wrapping twice is a no-op.
func NonNull(t Type) Type {
	if nn, ok := t.(*nonNull); ok {
		return nn
	}
	return &nonNull{of: t}
}

// namedOf strips List and NonNull wrappers.
func namedOf(t Type) Type {
	for {
		switch w := t.(type) {
		case *list:
			t = w.of
		case *nonNull:
			t = w.of
		default:
			return t
		}
	}
}

// ResolveParams is what a resolver receives for one field instance.
type ResolveParams struct {
	// Parent is the already-resolved parent value, nil on a root field.
	Parent any
	// Args holds coerced arguments. Arguments that were not supplied are
	// absent.
	Args map[string]any
	// ObjectType and Field name the field being resolved.
	ObjectType string
	Field      string
}

// ResolveFunc produces the value of one field instance. It may block on I/O.
// Returning (nil, nil) or a *NotFoundError yields null.
type ResolveFunc func(ctx context.Context, p ResolveParams) (any, error)

// BatchResult is one element of a BatchResolveFunc result.
type BatchResult struct {
	Value any
	Err   error
}

// BatchResolveFunc resolves every instance of one field found at one depth in
// a single call. It must return one result per params element, in order.
type BatchResolveFunc func(ctx context.Context, ps []ResolveParams) []BatchResult

// Field declares one field of an Object.
type Field struct {
	Name        string
	Type        Type
	Args        Args
	Description string
	// DeprecationReason marks the field deprecated when non-empty.
	DeprecationReason string
	// Resolve makes the field asynchronous. Without Resolve or Batch the
	// field reads Parent[Name].
	Resolve ResolveFunc
	// Batch takes precedence over Resolve.
	Batch BatchResolveFunc
}

func (f *Field) async() bool { return f.Resolve != nil || f.Batch != nil }

// Fields is an ordered field list.
type Fields []*Field

// Argument declares one field argument.
type Argument struct {
	Name         string
	Type         Type
	DefaultValue any
	Description  string
}

// Args is an ordered argument list.
type Args []*Argument
