package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	executor "github.com/hanpama/usergraph/internal/executor"
	"golang.org/x/sync/errgroup"
)

// runtime connects declared objects and their resolvers to the executor.
type runtime struct {
	objects        map[string]*Object
	scalars        map[string]*Scalar
	maxConcurrency int
}

var _ executor.Runtime = (*runtime)(nil)

// ResolveSync serves fields without a resolver by reading them off the parent.
func (r *runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	return defaultResolve(source, field)
}

// BatchResolveAsync runs every task of one depth concurrently: one goroutine
// per task, or one per field for fields that declare a batch resolver.
func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))

	var g errgroup.Group
	if r.maxConcurrency > 0 {
		g.SetLimit(r.maxConcurrency)
	}

	var batchOrder []*Field
	batches := make(map[*Field][]int)
	for i, t := range tasks {
		f := r.lookup(t.ObjectType, t.Field)
		if f == nil {
			results[i].Error = fmt.Errorf("field %s.%s has no resolver", t.ObjectType, t.Field)
			continue
		}
		if f.Batch != nil {
			if _, ok := batches[f]; !ok {
				batchOrder = append(batchOrder, f)
			}
			batches[f] = append(batches[f], i)
			continue
		}
		g.Go(func() error {
			results[i] = resolveOne(ctx, f, t)
			return nil
		})
	}
	for _, f := range batchOrder {
		idx := batches[f]
		g.Go(func() error {
			resolveBatch(ctx, f, tasks, idx, results)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SerializeLeafValue serializes through the scalar's Serialize function.
func (r *runtime) SerializeLeafValue(ctx context.Context, scalarTypeName string, value any) (any, error) {
	s, ok := r.scalars[scalarTypeName]
	if !ok {
		return nil, fmt.Errorf("unknown scalar %s", scalarTypeName)
	}
	return s.serialize(value)
}

func (r *runtime) lookup(objectType, field string) *Field {
	o, ok := r.objects[objectType]
	if !ok {
		return nil
	}
	return o.field(field)
}

func paramsOf(t executor.AsyncResolveTask) ResolveParams {
	return ResolveParams{Parent: t.Source, Args: t.Args, ObjectType: t.ObjectType, Field: t.Field}
}

func resolveOne(ctx context.Context, f *Field, t executor.AsyncResolveTask) (res executor.AsyncResolveResult) {
	defer func() {
		if p := recover(); p != nil {
			res = executor.AsyncResolveResult{Error: &PanicError{ObjectType: t.ObjectType, Field: t.Field, Value: p}}
		}
	}()
	v, err := f.Resolve(ctx, paramsOf(t))
	return settle(v, err)
}

func resolveBatch(ctx context.Context, f *Field, tasks []executor.AsyncResolveTask, idx []int, results []executor.AsyncResolveResult) {
	first := tasks[idx[0]]
	fail := func(err error) {
		for _, i := range idx {
			results[i] = executor.AsyncResolveResult{Error: err}
		}
	}
	defer func() {
		if p := recover(); p != nil {
			fail(&PanicError{ObjectType: first.ObjectType, Field: first.Field, Value: p})
		}
	}()

	ps := make([]ResolveParams, len(idx))
	for j, i := range idx {
		ps[j] = paramsOf(tasks[i])
	}
	out := f.Batch(ctx, ps)
	if len(out) != len(idx) {
		fail(fmt.Errorf("batch resolver %s.%s returned %d results for %d inputs", first.ObjectType, first.Field, len(out), len(idx)))
		return
	}
	for j, i := range idx {
		results[i] = settle(out[j].Value, out[j].Err)
	}
}

// settle maps not-found to null.
func settle(v any, err error) executor.AsyncResolveResult {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return executor.AsyncResolveResult{}
	}
	if err != nil {
		return executor.AsyncResolveResult{Error: err}
	}
	return executor.AsyncResolveResult{Value: v}
}

// defaultResolve reads field from a map, or from a struct field whose json
// tag or name matches.
func defaultResolve(source any, field string) (any, error) {
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[field], nil
	}

	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot read %s from %T", field, source)
		}
		v := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		i, ok := structFieldIndex(rv.Type(), field)
		if !ok {
			return nil, nil
		}
		return rv.Field(i).Interface(), nil
	}
	return nil, fmt.Errorf("cannot read %s from %T", field, source)
}

var structFields sync.Map // reflect.Type -> map[string]int

func structFieldIndex(t reflect.Type, field string) (int, bool) {
	var byName map[string]int
	if v, ok := structFields.Load(t); ok {
		byName = v.(map[string]int)
	} else {
		byName = make(map[string]int, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := sf.Name
			if tag, _, _ := strings.Cut(sf.Tag.Get("json"), ","); tag != "" && tag != "-" {
				name = tag
			}
			byName[name] = i
			if _, taken := byName[strings.ToLower(sf.Name[:1])+sf.Name[1:]]; !taken {
				byName[strings.ToLower(sf.Name[:1])+sf.Name[1:]] = i
			}
		}
		structFields.Store(t, byName)
	}
	i, ok := byName[field]
	return i, ok
}
