package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	executor "github.com/hanpama/usergraph/internal/executor"
	"github.com/stretchr/testify/require"
)

var (
	testUsers = map[string]map[string]any{
		"23": {"id": "23", "firstName": "Bill", "age": 30, "companyId": "1"},
		"24": {"id": "24", "firstName": "Samantha", "age": 31, "companyId": "1"},
	}
	testCompanies = map[string]map[string]any{
		"1": {"id": "1", "name": "Acme", "description": "Makes everything"},
	}
)

func findUser(id string) (any, error) {
	if u, ok := testUsers[id]; ok {
		return u, nil
	}
	return nil, &NotFoundError{Kind: "User", ID: id}
}

func findCompany(id string) (any, error) {
	if c, ok := testCompanies[id]; ok {
		return c, nil
	}
	return nil, &NotFoundError{Kind: "Company", ID: id}
}

// newTestSchema declares User and Company referencing each other. companyResolver
// customizes User.company.
func newTestSchema(t *testing.T, customize func(user *Field)) *Schema {
	t.Helper()
	var user, company *Object
	user = NewObject(ObjectConfig{
		Name: "User",
		Fields: func() Fields {
			f := Fields{
				{Name: "id", Type: NonNull(String)},
				{Name: "firstName", Type: String},
				{Name: "age", Type: Int},
				{
					Name: "company",
					Type: company,
					Resolve: func(ctx context.Context, p ResolveParams) (any, error) {
						return findCompany(p.Parent.(map[string]any)["companyId"].(string))
					},
				},
			}
			if customize != nil {
				customize(f[3])
			}
			return f
		},
	})
	company = NewObject(ObjectConfig{
		Name:        "Company",
		Description: "An employer.",
		Fields: func() Fields {
			return Fields{
				{Name: "id", Type: NonNull(String)},
				{Name: "name", Type: String},
				{Name: "description", Type: String, DeprecationReason: "unused"},
				{
					Name: "users",
					Type: List(user),
					Resolve: func(ctx context.Context, p ResolveParams) (any, error) {
						return []any{testUsers["23"], testUsers["24"]}, nil
					},
				},
			}
		},
	})
	query := NewObject(ObjectConfig{
		Name: "RootQueryType",
		Fields: func() Fields {
			return Fields{
				{
					Name: "user",
					Type: user,
					Args: Args{{Name: "id", Type: String}},
					Resolve: func(ctx context.Context, p ResolveParams) (any, error) {
						id, ok := p.Args["id"].(string)
						if !ok {
							return nil, nil
						}
						return findUser(id)
					},
				},
				{
					Name: "company",
					Type: company,
					Args: Args{{Name: "id", Type: String}},
					Resolve: func(ctx context.Context, p ResolveParams) (any, error) {
						return findCompany(p.Args["id"].(string))
					},
				},
			}
		},
	})

	s, err := NewSchema(SchemaConfig{Query: query})
	require.NoError(t, err)
	return s
}

func TestExecute_MutualReferences(t *testing.T) {
	s := newTestSchema(t, nil)

	got := s.Execute(context.Background(), Request{
		Query: `{ user(id: "23") { id firstName age company { name users { id } } } }`,
	})

	want := &Result{
		Data: map[string]any{"user": map[string]any{
			"id":        "23",
			"firstName": "Bill",
			"age":       30,
			"company": map[string]any{
				"name":  "Acme",
				"users": []any{map[string]any{"id": "23"}, map[string]any{"id": "24"}},
			},
		}},
		Errors: []executor.GraphQLError{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_NotFoundIsNull(t *testing.T) {
	s := newTestSchema(t, nil)

	got := s.Execute(context.Background(), Request{Query: `{ user(id: "999") { id } missing: user { id } }`})

	want := &Result{Data: map[string]any{"user": nil, "missing": nil}, Errors: []executor.GraphQLError{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ValidationFailureHasNoData(t *testing.T) {
	s := newTestSchema(t, nil)

	got := s.Execute(context.Background(), Request{Query: `{ user(id: "23") { nope } }`})

	require.Nil(t, got.Data)
	require.Len(t, got.Errors, 1)
	require.Equal(t, "GRAPHQL_VALIDATION_FAILED", got.Errors[0].Extensions["code"])
	require.NotEmpty(t, got.Errors[0].Locations)
}

func TestExecute_ParseFailure(t *testing.T) {
	s := newTestSchema(t, nil)

	got := s.Execute(context.Background(), Request{Query: `{ user(`})

	require.Nil(t, got.Data)
	require.Len(t, got.Errors, 1)
	require.Equal(t, "GRAPHQL_PARSE_FAILED", got.Errors[0].Extensions["code"])
}

func TestExecute_VariablesReachResolver(t *testing.T) {
	s := newTestSchema(t, nil)

	got := s.Execute(context.Background(), Request{
		Query:     `query Lookup($id: String) { user(id: $id) { firstName } }`,
		Variables: map[string]any{"id": "24"},
	})

	want := &Result{Data: map[string]any{"user": map[string]any{"firstName": "Samantha"}}, Errors: []executor.GraphQLError{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_PanicBecomesFieldError(t *testing.T) {
	s := newTestSchema(t, func(f *Field) {
		f.Resolve = func(ctx context.Context, p ResolveParams) (any, error) { panic("kaboom") }
	})

	got := s.Execute(context.Background(), Request{Query: `{ user(id: "23") { firstName company { name } } }`})

	want := &Result{
		Data: map[string]any{"user": map[string]any{"firstName": "Bill", "company": nil}},
		Errors: []executor.GraphQLError{{
			Message:    "resolver User.company panicked: kaboom",
			Path:       executor.Path{"user", "company"},
			Extensions: map[string]any{"code": "INTERNAL_SERVER_ERROR"},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_BatchReceivesAllInstancesOfOneDepth(t *testing.T) {
	var calls atomic.Int32
	var sizes []int
	s := newTestSchema(t, func(f *Field) {
		f.Resolve = nil
		f.Batch = func(ctx context.Context, ps []ResolveParams) []BatchResult {
			calls.Add(1)
			sizes = append(sizes, len(ps))
			out := make([]BatchResult, len(ps))
			for i, p := range ps {
				v, err := findCompany(p.Parent.(map[string]any)["companyId"].(string))
				out[i] = BatchResult{Value: v, Err: err}
			}
			return out
		}
	})

	got := s.Execute(context.Background(), Request{Query: `{ company(id: "1") { users { company { name } } } }`})

	require.Empty(t, got.Errors)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, []int{2}, sizes)
	users := got.Data.(map[string]any)["company"].(map[string]any)["users"].([]any)
	require.Len(t, users, 2)
	require.Equal(t, map[string]any{"name": "Acme"}, users[1].(map[string]any)["company"])
}

func TestExecute_SiblingResolversRunConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	s := newTestSchema(t, func(f *Field) {
		f.Resolve = func(ctx context.Context, p ResolveParams) (any, error) {
			arrived.Done()
			done := make(chan struct{})
			go func() { arrived.Wait(); close(done) }()
			select {
			case <-done:
				return testCompanies["1"], nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("sibling resolver never started")
			}
		}
	})

	got := s.Execute(context.Background(), Request{Query: `{ a: user(id: "23") { company { name } } b: user(id: "24") { company { name } } }`})

	require.Empty(t, got.Errors)
}

func TestExecute_MutationRootIsSerial(t *testing.T) {
	var order []string
	var mu sync.Mutex
	step := func(name string) ResolveFunc {
		return func(ctx context.Context, p ResolveParams) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return name, nil
		}
	}
	query := NewObject(ObjectConfig{Name: "Query", Fields: func() Fields {
		return Fields{{Name: "ping", Type: String}}
	}})
	mutation := NewObject(ObjectConfig{Name: "Mutation", Fields: func() Fields {
		return Fields{
			{Name: "first", Type: String, Resolve: step("first")},
			{Name: "second", Type: String, Resolve: step("second")},
			{Name: "third", Type: String, Resolve: step("third")},
		}
	}})
	s, err := NewSchema(SchemaConfig{Query: query, Mutation: mutation})
	require.NoError(t, err)

	got := s.Execute(context.Background(), Request{Query: `mutation { third second first }`})

	require.Empty(t, got.Errors)
	require.Equal(t, []string{"third", "second", "first"}, order)
}

func TestDefaultResolver_Structs(t *testing.T) {
	type person struct {
		ID        string `json:"id"`
		FirstName string `json:"first_name"`
		Age       int
	}
	personType := NewObject(ObjectConfig{Name: "Person", Fields: func() Fields {
		return Fields{
			{Name: "id", Type: ID},
			{Name: "first_name", Type: String},
			{Name: "age", Type: Int},
		}
	}})
	query := NewObject(ObjectConfig{Name: "Query", Fields: func() Fields {
		return Fields{{
			Name: "me",
			Type: personType,
			Resolve: func(ctx context.Context, p ResolveParams) (any, error) {
				return &person{ID: "7", FirstName: "Ada", Age: 36}, nil
			},
		}}
	}})
	s, err := NewSchema(SchemaConfig{Query: query})
	require.NoError(t, err)

	got := s.Execute(context.Background(), Request{Query: `{ me { id first_name age } }`})

	want := &Result{
		Data:   map[string]any{"me": map[string]any{"id": "7", "first_name": "Ada", "age": 36}},
		Errors: []executor.GraphQLError{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSchema_Rejects(t *testing.T) {
	t.Run("duplicate field", func(t *testing.T) {
		q := NewObject(ObjectConfig{Name: "Query", Fields: func() Fields {
			return Fields{{Name: "a", Type: String}, {Name: "a", Type: Int}}
		}})
		_, err := NewSchema(SchemaConfig{Query: q})
		require.ErrorContains(t, err, `duplicate field "a"`)
	})

	t.Run("duplicate type name", func(t *testing.T) {
		a := NewObject(ObjectConfig{Name: "Thing", Fields: func() Fields { return Fields{{Name: "x", Type: String}} }})
		b := NewObject(ObjectConfig{Name: "Thing", Fields: func() Fields { return Fields{{Name: "y", Type: String}} }})
		q := NewObject(ObjectConfig{Name: "Query", Fields: func() Fields {
			return Fields{{Name: "a", Type: a}, {Name: "b", Type: b}}
		}})
		_, err := NewSchema(SchemaConfig{Query: q})
		require.ErrorContains(t, err, `type name "Thing" is declared twice`)
	})

	t.Run("object argument", func(t *testing.T) {
		var q *Object
		q = NewObject(ObjectConfig{Name: "Query", Fields: func() Fields {
			return Fields{{Name: "a", Type: String, Args: Args{{Name: "in", Type: q}}}}
		}})
		_, err := NewSchema(SchemaConfig{Query: q})
		require.Error(t, err)
	})

	t.Run("missing query root", func(t *testing.T) {
		_, err := NewSchema(SchemaConfig{})
		require.Error(t, err)
	})
}

func TestSDL(t *testing.T) {
	s := newTestSchema(t, nil)
	sdl := s.SDL()

	require.Contains(t, sdl, "schema {\n  query: RootQueryType\n}")
	require.Contains(t, sdl, "  user(id: String): User\n")
	require.Contains(t, sdl, "  users: [User]\n")
	require.Contains(t, sdl, "  id: String!\n")
	require.Contains(t, sdl, "\"\"\"\nAn employer.\n\"\"\"\ntype Company {")
	require.Contains(t, sdl, `description: String @deprecated(reason: "unused")`)
}
