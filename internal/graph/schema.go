package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	eventbus "github.com/hanpama/usergraph/internal/eventbus"
	events "github.com/hanpama/usergraph/internal/events"
	executor "github.com/hanpama/usergraph/internal/executor"
	language "github.com/hanpama/usergraph/internal/language"
	schema "github.com/hanpama/usergraph/internal/schema"
	server "github.com/hanpama/usergraph/internal/server"
)

// Request is one GraphQL request.
type Request = executor.Request

// Result is the {data, errors} response of one request.
type Result = executor.ExecutionResult

// SchemaConfig names the root objects of a schema.
type SchemaConfig struct {
	Query    *Object
	Mutation *Object
	// Description is rendered at the top of the SDL.
	Description string
	// MaxConcurrency bounds how many resolvers of one depth run at once.
	// 0 means unbounded.
	MaxConcurrency int
}

// Schema is an immutable, executable schema.
type Schema struct {
	validation *language.ValidatedSchema
	exec       *executor.Executor
	sdl        string
}

// NewSchema evaluates every object reachable from the roots and builds an
// executable schema.
func NewSchema(cfg SchemaConfig) (*Schema, error) {
	if cfg.Query == nil {
		return nil, fmt.Errorf("schema requires a query root")
	}

	rt := &runtime{
		objects:        make(map[string]*Object),
		scalars:        make(map[string]*Scalar),
		maxConcurrency: cfg.MaxConcurrency,
	}
	for name, s := range builtinScalars {
		rt.scalars[name] = s
	}

	if err := register(rt, cfg.Query); err != nil {
		return nil, err
	}
	if cfg.Mutation != nil {
		if err := register(rt, cfg.Mutation); err != nil {
			return nil, err
		}
	}

	def := schema.NewSchema(cfg.Description).SetQueryType(cfg.Query.name)
	if cfg.Mutation != nil {
		def.SetMutationType(cfg.Mutation.name)
	}
	for name, s := range rt.scalars {
		if _, builtin := builtinScalars[name]; !builtin {
			def.AddType(schema.NewType(name, schema.TypeKindScalar, s.description))
		}
	}
	for _, o := range rt.objects {
		def.AddType(buildType(o))
	}

	sdl := schema.Render(def)
	validation, err := language.LoadSchema("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("schema is invalid: %w", err)
	}

	return &Schema{
		validation: validation,
		exec:       executor.NewExecutor(rt, def),
		sdl:        sdl,
	}, nil
}

// register walks o and every type reachable from it.
func register(rt *runtime, o *Object) error {
	if prev, ok := rt.objects[o.name]; ok {
		if prev != o {
			return fmt.Errorf("type name %q is declared twice", o.name)
		}
		return nil
	}
	if _, ok := rt.scalars[o.name]; ok {
		return fmt.Errorf("type name %q is declared twice", o.name)
	}
	if err := o.evaluate(); err != nil {
		return err
	}
	rt.objects[o.name] = o

	for _, f := range o.fields {
		if err := registerType(rt, f.Type); err != nil {
			return err
		}
		for _, a := range f.Args {
			if err := registerType(rt, a.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func registerType(rt *runtime, t Type) error {
	switch n := namedOf(t).(type) {
	case *Object:
		return register(rt, n)
	case *Scalar:
		if prev, ok := rt.scalars[n.name]; ok {
			if prev != n {
				return fmt.Errorf("type name %q is declared twice", n.name)
			}
			return nil
		}
		if _, ok := rt.objects[n.name]; ok || !validName(n.name) {
			return fmt.Errorf("invalid scalar name %q", n.name)
		}
		rt.scalars[n.name] = n
		return nil
	default:
		return fmt.Errorf("unsupported type %T", t)
	}
}

func buildType(o *Object) *schema.Type {
	t := schema.NewType(o.name, schema.TypeKindObject, o.description)
	for _, f := range o.fields {
		sf := schema.NewField(f.Name, f.Description, f.Type.ref()).SetAsync(f.async())
		for _, a := range f.Args {
			in := schema.NewInputValue(a.Name, a.Description, a.Type.ref())
			if a.DefaultValue != nil {
				in.SetDefault(a.DefaultValue)
			}
			sf.AddArgument(in)
		}
		if f.DeprecationReason != "" {
			sf.Deprecate(f.DeprecationReason)
		}
		t.AddField(sf)
	}
	return t
}

// SDL renders the schema definition language of the schema.
func (s *Schema) SDL() string { return s.sdl }

// Execute parses, validates and executes req. Parse and validation failures
// produce errors and no data.
func (s *Schema) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()
	doc, errs := language.LoadQuery(s.validation, req.Query)

	opType := ""
	if doc != nil {
		if op := selectOperation(doc, req.OperationName); op != nil {
			opType = string(op.Operation)
		}
	}
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})

	var res *Result
	if len(errs) > 0 {
		res = &Result{Errors: requestErrors(errs)}
	} else {
		res = s.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	}

	finished := make([]error, len(res.Errors))
	for i := range res.Errors {
		finished[i] = res.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        finished,
		Duration:      time.Since(start),
	})
	return res
}

// Handler serves the schema over HTTP.
func (s *Schema) Handler(opts ...server.Option) http.Handler {
	return server.New(s, opts...)
}

func selectOperation(doc *language.QueryDocument, name string) *language.OperationDefinition {
	if name == "" && len(doc.Operations) == 1 {
		return doc.Operations[0]
	}
	return doc.Operations.ForName(name)
}

// requestErrors converts parse and validation errors. Errors raised by a
// validation rule are GRAPHQL_VALIDATION_FAILED, the rest are parse errors.
func requestErrors(list language.ErrorList) []executor.GraphQLError {
	out := make([]executor.GraphQLError, 0, len(list))
	for _, e := range list {
		code := "GRAPHQL_PARSE_FAILED"
		if e.Rule != "" {
			code = "GRAPHQL_VALIDATION_FAILED"
		}
		ge := executor.GraphQLError{
			Message:    e.Message,
			Extensions: map[string]any{"code": code},
		}
		for _, loc := range e.Locations {
			ge.Locations = append(ge.Locations, executor.Location{Line: loc.Line, Column: loc.Column})
		}
		out = append(out, ge)
	}
	return out
}
