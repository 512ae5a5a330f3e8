package graph

import (
	"fmt"
	"sync"

	schema "github.com/hanpama/usergraph/internal/schema"
)

// ObjectConfig declares an object type.
type ObjectConfig struct {
	Name        string
	Description string
	// Fields is evaluated once, when the first schema containing the object is
	// built, so objects may refer to each other.
	Fields func() Fields
}

// Object is a handle to a declared object type. It can be referenced by
// other objects before its own fields exist.
type Object struct {
	mu          sync.Mutex
	name        string
	description string
	thunk       func() Fields
	fields      Fields
	byName      map[string]*Field
	evaluated   bool
}

// NewObject declares an object type.
func NewObject(cfg ObjectConfig) *Object {
	return &Object{name: cfg.Name, description: cfg.Description, thunk: cfg.Fields}
}

func (o *Object) Name() string         { return o.name }
func (o *Object) String() string       { return o.name }
func (o *Object) ref() *schema.TypeRef { return schema.NamedType(o.name) }

// Fields returns the evaluated field list, or nil before any schema was built.
func (o *Object) Fields() Fields { return o.fields }

func (o *Object) field(name string) *Field { return o.byName[name] }

// evaluate runs the field thunk and checks the result.
func (o *Object) evaluate() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.evaluated {
		return nil
	}
	if !validName(o.name) {
		return fmt.Errorf("invalid object name %q", o.name)
	}
	var fields Fields
	if o.thunk != nil {
		fields = o.thunk()
	}
	if len(fields) == 0 {
		return fmt.Errorf("object %s declares no fields", o.name)
	}
	byName := make(map[string]*Field, len(fields))
	for _, f := range fields {
		if f == nil || !validName(f.Name) {
			return fmt.Errorf("object %s: invalid field", o.name)
		}
		if _, dup := byName[f.Name]; dup {
			return fmt.Errorf("object %s: duplicate field %q", o.name, f.Name)
		}
		if f.Type == nil {
			return fmt.Errorf("field %s.%s has no type", o.name, f.Name)
		}
		seen := make(map[string]struct{}, len(f.Args))
		for _, a := range f.Args {
			if a == nil || !validName(a.Name) || a.Type == nil {
				return fmt.Errorf("field %s.%s: invalid argument", o.name, f.Name)
			}
			if _, dup := seen[a.Name]; dup {
				return fmt.Errorf("field %s.%s: duplicate argument %q", o.name, f.Name, a.Name)
			}
			seen[a.Name] = struct{}{}
			if _, isObj := namedOf(a.Type).(*Object); isObj {
				return fmt.Errorf("argument %s.%s(%s) must be a scalar or list of scalars", o.name, f.Name, a.Name)
			}
		}
		byName[f.Name] = f
	}
	o.fields = fields
	o.byName = byName
	o.evaluated = true
	return nil
}

func validName(name string) bool {
	if name == "" || len(name) > 1 && name[:2] == "__" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
