// Package users declares the User/Company graph over a Source.
package users

import (
	"context"
	"strconv"

	graph "github.com/hanpama/usergraph/internal/graph"
	"golang.org/x/sync/errgroup"
)

// Source serves users and companies. Both the REST client and the memory
// store implement it.
type Source interface {
	User(ctx context.Context, id string) (map[string]any, error)
	Company(ctx context.Context, id string) (map[string]any, error)
	CompanyUsers(ctx context.Context, companyID string) ([]map[string]any, error)
}

// Option customizes the schema.
type Option func(*options)

type options struct {
	batchCompanies bool
	maxConcurrency int
}

// WithCompanyBatching resolves User.company once per depth, fetching each
// distinct company id a single time. It is off by default: every User.company
// issues its own fetch.
func WithCompanyBatching() Option { return func(o *options) { o.batchCompanies = true } }

// WithMaxConcurrency bounds concurrent fetches per depth, including the
// fetches of a company batch. 0 is unbounded.
func WithMaxConcurrency(n int) Option { return func(o *options) { o.maxConcurrency = n } }

// NewSchema builds the schema:
//
//	type User { id: String firstName: String age: Int company: Company }
//	type Company { id: String name: String description: String users: [User] }
//	type RootQueryType { user(id: String): User company(id: String): Company }
func NewSchema(src Source, opts ...Option) (*graph.Schema, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	var userType, companyType *graph.Object

	userType = graph.NewObject(graph.ObjectConfig{
		Name: "User",
		Fields: func() graph.Fields {
			company := &graph.Field{
				Name: "company",
				Type: companyType,
				Resolve: func(ctx context.Context, p graph.ResolveParams) (any, error) {
					id, ok := stringField(p.Parent, "companyId")
					if !ok {
						return nil, nil
					}
					return nullable(src.Company(ctx, id))
				},
			}
			if o.batchCompanies {
				company.Resolve = nil
				company.Batch = batchCompanies(src, o.maxConcurrency)
			}
			return graph.Fields{
				{Name: "id", Type: graph.String},
				{Name: "firstName", Type: graph.String},
				{Name: "age", Type: graph.Int},
				company,
			}
		},
	})

	companyType = graph.NewObject(graph.ObjectConfig{
		Name: "Company",
		Fields: func() graph.Fields {
			return graph.Fields{
				{Name: "id", Type: graph.String},
				{Name: "name", Type: graph.String},
				{Name: "description", Type: graph.String},
				{
					Name: "users",
					Type: graph.List(userType),
					Resolve: func(ctx context.Context, p graph.ResolveParams) (any, error) {
						id, ok := stringField(p.Parent, "id")
						if !ok {
							return nil, nil
						}
						us, err := src.CompanyUsers(ctx, id)
						if err != nil || us == nil {
							return nil, err
						}
						return us, nil
					},
				},
			}
		},
	})

	rootQuery := graph.NewObject(graph.ObjectConfig{
		Name: "RootQueryType",
		Fields: func() graph.Fields {
			return graph.Fields{
				{
					Name: "user",
					Type: userType,
					Args: graph.Args{{Name: "id", Type: graph.String}},
					Resolve: func(ctx context.Context, p graph.ResolveParams) (any, error) {
						id, ok := p.Args["id"].(string)
						if !ok {
							return nil, nil
						}
						return nullable(src.User(ctx, id))
					},
				},
				{
					Name: "company",
					Type: companyType,
					Args: graph.Args{{Name: "id", Type: graph.String}},
					Resolve: func(ctx context.Context, p graph.ResolveParams) (any, error) {
						id, ok := p.Args["id"].(string)
						if !ok {
							return nil, nil
						}
						return nullable(src.Company(ctx, id))
					},
				},
			}
		},
	})

	return graph.NewSchema(graph.SchemaConfig{Query: rootQuery, MaxConcurrency: o.maxConcurrency})
}

// nullable turns a nil map into an untyped nil.
func nullable(v map[string]any, err error) (any, error) {
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func stringField(parent any, key string) (string, bool) {
	m, ok := parent.(map[string]any)
	if !ok {
		return "", false
	}
	switch v := m[key].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// batchCompanies fetches each distinct company id once and fans the results
// back out in input order. At most limit fetches run at once; 0 is unbounded.
func batchCompanies(src Source, limit int) graph.BatchResolveFunc {
	return func(ctx context.Context, ps []graph.ResolveParams) []graph.BatchResult {
		type fetched struct {
			value any
			err   error
		}
		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		byID := make(map[string]*fetched)
		for _, p := range ps {
			id, ok := stringField(p.Parent, "companyId")
			if !ok {
				continue
			}
			if _, seen := byID[id]; seen {
				continue
			}
			f := &fetched{}
			byID[id] = f
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						f.value, f.err = nil, &graph.PanicError{ObjectType: "User", Field: "company", Value: r}
					}
				}()
				f.value, f.err = nullable(src.Company(ctx, id))
				return nil
			})
		}
		_ = g.Wait()

		out := make([]graph.BatchResult, len(ps))
		for i, p := range ps {
			id, ok := stringField(p.Parent, "companyId")
			if !ok {
				continue
			}
			f := byID[id]
			out[i] = graph.BatchResult{Value: f.value, Err: f.err}
		}
		return out
	}
}
