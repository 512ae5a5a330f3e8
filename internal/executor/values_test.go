package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	schema "github.com/hanpama/usergraph/internal/schema"
)

func rootArgs(t *testing.T, rt *MockRuntime) map[string]any {
	t.Helper()
	calls := rt.GetCalls()
	if len(calls) == 0 {
		t.Fatalf("no runtime calls recorded")
	}
	return calls[0].Args
}

func TestArguments(t *testing.T) {
	cases := []struct {
		name  string
		query string
		vars  map[string]any
		want  map[string]any
	}{
		{"literal string", `{ user(id: "23") { id } }`, nil, map[string]any{"id": "23"}},
		{"missing optional is absent", `{ user { id } }`, nil, map[string]any{}},
		{"unprovided variable is absent", `query($id: String) { user(id: $id) { id } }`, nil, map[string]any{}},
		{"provided variable", `query($id: String) { user(id: $id) { id } }`, map[string]any{"id": "24"}, map[string]any{"id": "24"}},
		{"variable default", `query($id: String = "23") { user(id: $id) { id } }`, nil, map[string]any{"id": "23"}},
		{"explicit null", `{ user(id: null) { id } }`, nil, map[string]any{"id": nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := NewMockRuntime(map[string]MockResolver{"Query.user": NewMockValueResolver(nil)})
			exec := NewExecutor(rt, usersSchema())
			res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, tc.query), "", tc.vars, nil)
			if len(res.Errors) != 0 {
				t.Fatalf("unexpected errors: %+v", res.Errors)
			}
			if diff := cmp.Diff(tc.want, rootArgs(t, rt)); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestArguments_DefaultsAndCoercion(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.users": NewMockValueResolver([]any{})})
	exec := NewExecutor(rt, usersSchema())

	exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ users { id } }`), "", nil, nil)
	exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ users(limit: 2, ids: 23) { id } }`), "", nil, nil)
	exec.ExecuteRequest(context.Background(), mustParseQuery(t, `query($n: Int) { users(limit: $n, ids: ["23", 24]) { id } }`), "", map[string]any{"n": float64(5)}, nil)

	var got []map[string]any
	for _, c := range rt.GetCalls() {
		got = append(got, c.Args)
	}
	want := []map[string]any{
		{"limit": 10},
		{"limit": 2, "ids": []any{"23"}},
		{"limit": 5, "ids": []any{"23", "24"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestVariables_RequiredMissing(t *testing.T) {
	rt := NewMockRuntime(nil)
	exec := NewExecutor(rt, usersSchema())
	doc := mustParseQuery(t, `query($id: String!) { user(id: $id) { id } }`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{Errors: []GraphQLError{{Message: "variable $id of required type String! was not provided"}}}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if len(rt.GetCalls()) != 0 {
		t.Fatalf("runtime called despite variable error")
	}
}

func TestVariables_NotCoercible(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), usersSchema())
	doc := mustParseQuery(t, `query($n: Int) { users(limit: $n) { id } }`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"n": "ten"}, nil)

	if gotRes.Data != nil || len(gotRes.Errors) != 1 {
		t.Fatalf("expected a single request error, got %+v", gotRes)
	}
}

func TestDirectives_SkipAndInclude(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.user": NewMockValueResolver(bill)})
	exec := NewExecutor(rt, usersSchema())
	doc := mustParseQuery(t, `query($withAge: Boolean!) {
		user(id: "23") { firstName @skip(if: true) id age @include(if: $withAge) }
	}`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"withAge": false}, nil)

	wantRes := &ExecutionResult{Data: map[string]any{"user": map[string]any{"id": "23"}}, Errors: []GraphQLError{}}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerceValue(t *testing.T) {
	intT := schema.NamedType("Int")
	if v, err := coerceValue(int64(7), intT); err != nil || v != 7 {
		t.Fatalf("int64: got %v, %v", v, err)
	}
	if _, err := coerceValue(1.5, intT); err == nil {
		t.Fatalf("expected error coercing 1.5 to Int")
	}
	if _, err := coerceValue(int64(1)<<40, intT); err == nil {
		t.Fatalf("expected error for out-of-range Int")
	}
	if v, err := coerceValue(int64(3), schema.NamedType("Float")); err != nil || v != float64(3) {
		t.Fatalf("float: got %v, %v", v, err)
	}
	if _, err := coerceValue(nil, schema.NonNullType(schema.NamedType("String"))); err == nil {
		t.Fatalf("expected error for null into String!")
	}
	if _, err := coerceValue(true, schema.NamedType("String")); err == nil {
		t.Fatalf("expected error coercing bool to String")
	}
}
