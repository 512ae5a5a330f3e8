package schema

import (
	"fmt"
	"strings"

	language "github.com/hanpama/usergraph/internal/language"
)

// NewSchema returns an empty schema with the builtin scalars.
func NewSchema(description string) *Schema {
	s := &Schema{
		Types:       make(map[string]*Type),
		Description: description,
	}
	for _, t := range builtinScalars {
		s.AddType(t)
	}
	return s
}

func (s *Schema) SetQueryType(name string) *Schema    { s.QueryType = name; return s }
func (s *Schema) SetMutationType(name string) *Schema { s.MutationType = name; return s }

func (s *Schema) AddType(t *Type) *Schema {
	if s.Types == nil {
		s.Types = make(map[string]*Type)
	}
	s.Types[t.Name] = t
	return s
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type {
	t.Fields = append(t.Fields, f)
	return t
}

// Field returns the field named name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) SetAsync(async bool) *Field { f.Async = async; return f }

func (f *Field) AddArgument(arg *InputValue) *Field {
	f.Arguments = append(f.Arguments, arg)
	return f
}

func (f *Field) Deprecate(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func (v *InputValue) SetDefault(val any) *InputValue { v.DefaultValue = val; return v }

// BuildFromSDL parses SDL and returns the corresponding Schema. Fields that
// declare arguments are marked async; argument-free fields read from their
// parent. Only object and scalar definitions are accepted.
func BuildFromSDL(sdl string) (*Schema, error) {
	doc, err := language.LoadSchema("schema.graphql", sdl)
	if err != nil {
		return nil, err
	}
	s := NewSchema("")
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	for name, def := range doc.Types {
		if def.BuiltIn {
			continue
		}
		switch def.Kind {
		case language.Object:
			t := NewType(name, TypeKindObject, def.Description)
			for _, fd := range def.Fields {
				if strings.HasPrefix(fd.Name, "__") {
					continue
				}
				f := NewField(fd.Name, fd.Description, typeRefFromAST(fd.Type)).
					SetAsync(len(fd.Arguments) > 0)
				for _, ad := range fd.Arguments {
					in := NewInputValue(ad.Name, ad.Description, typeRefFromAST(ad.Type))
					if ad.DefaultValue != nil {
						v, err := ad.DefaultValue.Value(nil)
						if err != nil {
							return nil, fmt.Errorf("default for %s.%s(%s): %w", name, fd.Name, ad.Name, err)
						}
						in.SetDefault(v)
					}
					f.AddArgument(in)
				}
				if dep := fd.Directives.ForName("deprecated"); dep != nil {
					reason := ""
					if arg := dep.Arguments.ForName("reason"); arg != nil {
						reason = arg.Value.Raw
					}
					f.Deprecate(reason)
				}
				t.AddField(f)
			}
			s.AddType(t)
		case language.Scalar:
			s.AddType(NewType(name, TypeKindScalar, def.Description))
		default:
			return nil, fmt.Errorf("type %s: unsupported kind %s", name, def.Kind)
		}
	}
	return s, nil
}

func typeRefFromAST(t *language.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var inner *TypeRef
	if t.Elem != nil {
		inner = ListType(typeRefFromAST(t.Elem))
	} else {
		inner = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(inner)
	}
	return inner
}
