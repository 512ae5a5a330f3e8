package executor

import (
	"testing"

	language "github.com/hanpama/usergraph/internal/language"
	schema "github.com/hanpama/usergraph/internal/schema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

// mustBuildSchema builds a schema from SDL and fails the test on error.
func mustBuildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("schema error: %v", err)
	}
	return s
}

func newSchemaWithQueryType(query *schema.Type, additional ...*schema.Type) *schema.Schema {
	sch := schema.NewSchema("")
	sch.SetQueryType(query.Name)
	sch.AddType(query)
	for _, t := range additional {
		sch.AddType(t)
	}
	return sch
}

func newObjectType(name string, fields ...*schema.Field) *schema.Type {
	t := schema.NewType(name, schema.TypeKindObject, "")
	for _, field := range fields {
		t.AddField(field)
	}
	return t
}

// usersSchema models users and companies that reference each other. Every
// reference field is async.
func usersSchema() *schema.Schema {
	str := schema.NamedType("String")
	return newSchemaWithQueryType(
		newObjectType("Query",
			schema.NewField("user", "", schema.NamedType("User")).SetAsync(true).
				AddArgument(schema.NewInputValue("id", "", str)),
			schema.NewField("company", "", schema.NamedType("Company")).SetAsync(true).
				AddArgument(schema.NewInputValue("id", "", str)),
			schema.NewField("users", "", schema.ListType(schema.NamedType("User"))).SetAsync(true).
				AddArgument(schema.NewInputValue("limit", "", schema.NamedType("Int")).SetDefault(10)).
				AddArgument(schema.NewInputValue("ids", "", schema.ListType(schema.NonNullType(schema.NamedType("ID"))))),
		),
		newObjectType("User",
			schema.NewField("id", "", schema.NonNullType(str)),
			schema.NewField("firstName", "", str),
			schema.NewField("age", "", schema.NamedType("Int")),
			schema.NewField("company", "", schema.NamedType("Company")).SetAsync(true),
		),
		newObjectType("Company",
			schema.NewField("id", "", schema.NonNullType(str)),
			schema.NewField("name", "", str),
			schema.NewField("users", "", schema.ListType(schema.NamedType("User"))).SetAsync(true),
			schema.NewField("ceo", "", schema.NonNullType(schema.NamedType("User"))).SetAsync(true),
		),
	)
}

var (
	bill     = map[string]any{"id": "23", "firstName": "Bill", "age": 30, "companyId": "1"}
	samantha = map[string]any{"id": "24", "firstName": "Samantha", "age": 31, "companyId": "1"}
	acme     = map[string]any{"id": "1", "name": "Acme"}
)
