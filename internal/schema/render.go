package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces SDL from the Schema.
// Deterministic ordering: type names sorted lexicographically, fields in
// declaration order.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder

	renderSchemaDefinition(&b, s)

	typeNames := make([]string, 0, len(s.Types))
	for name := range s.Types {
		if IsBuiltinScalar(name) {
			continue
		}
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	for _, name := range typeNames {
		typ := s.Types[name]
		switch typ.Kind {
		case TypeKindScalar:
			renderScalar(&b, typ)
		case TypeKindObject:
			renderObject(&b, typ)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// renderSchemaDefinition is needed only when a root type is not named after
// its operation.
func renderSchemaDefinition(b *strings.Builder, s *Schema) {
	conventional := (s.QueryType == "" || s.QueryType == "Query") &&
		(s.MutationType == "" || s.MutationType == "Mutation")
	if conventional {
		return
	}
	renderDescription(b, s.Description, "")
	b.WriteString("schema {\n")
	if s.QueryType != "" {
		b.WriteString("  query: ")
		b.WriteString(s.QueryType)
		b.WriteString("\n")
	}
	if s.MutationType != "" {
		b.WriteString("  mutation: ")
		b.WriteString(s.MutationType)
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}

func renderDescription(b *strings.Builder, desc, indent string) {
	if desc == "" {
		return
	}
	b.WriteString(indent)
	b.WriteString("\"\"\"\n")
	escaped := strings.ReplaceAll(desc, "\"\"\"", "\\\"\"\"")
	for _, line := range strings.Split(escaped, "\n") {
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(indent)
	b.WriteString("\"\"\"\n")
}

func renderScalar(b *strings.Builder, typ *Type) {
	renderDescription(b, typ.Description, "")
	b.WriteString("scalar ")
	b.WriteString(typ.Name)
	b.WriteString("\n\n")
}

func renderObject(b *strings.Builder, typ *Type) {
	renderDescription(b, typ.Description, "")
	b.WriteString("type ")
	b.WriteString(typ.Name)
	b.WriteString(" {\n")
	for _, field := range typ.Fields {
		renderField(b, field)
	}
	b.WriteString("}\n\n")
}

func renderField(b *strings.Builder, field *Field) {
	renderDescription(b, field.Description, "  ")
	b.WriteString("  ")
	b.WriteString(field.Name)
	if len(field.Arguments) > 0 {
		b.WriteString("(")
		for i, arg := range field.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.Name)
			b.WriteString(": ")
			b.WriteString(renderTypeRef(arg.Type))
			if arg.DefaultValue != nil {
				b.WriteString(" = ")
				b.WriteString(renderValue(arg.DefaultValue))
			}
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(renderTypeRef(field.Type))

	if field.IsDeprecated {
		b.WriteString(" @deprecated")
		if field.DeprecationReason != "" {
			b.WriteString("(reason: ")
			b.WriteString(strconv.Quote(field.DeprecationReason))
			b.WriteString(")")
		}
	}

	b.WriteString("\n")
}

func renderTypeRef(typeRef *TypeRef) string {
	if typeRef == nil {
		return ""
	}

	switch typeRef.Kind {
	case TypeRefKindNamed:
		return typeRef.Named
	case TypeRefKindList:
		return "[" + renderTypeRef(typeRef.OfType) + "]"
	case TypeRefKindNonNull:
		return renderTypeRef(typeRef.OfType) + "!"
	default:
		return ""
	}
}

// renderValue renders a default argument value.
func renderValue(value any) string {
	if value == nil {
		return "null"
	}

	switch v := value.(type) {
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, renderValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
