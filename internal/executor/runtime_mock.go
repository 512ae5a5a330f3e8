package executor

import (
	"context"
	"sync"
)

// MockResolver resolves a single field instance.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

// NewMockValueResolver returns a MockResolver that always returns val.
func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// Call records one field resolution. Async calls made by the same
// BatchResolveAsync invocation share a BatchID; sync calls have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime is a recording Runtime for tests. Fields without a registered
// resolver read the field name from a map source.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
	batchSeq  int
}

// NewMockRuntime creates a MockRuntime. Keys are "ObjectType.field".
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver, len(resolvers))}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

func (m *MockRuntime) resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.mu.Unlock()
	if r != nil {
		return r(ctx, source, args)
	}
	if src, ok := source.(map[string]any); ok {
		return src[field], nil
	}
	return nil, nil
}

func (m *MockRuntime) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	m.record(Call{Kind: CallKindSync, ObjectType: objectType, Field: field, Source: source, Args: args})
	return m.resolve(ctx, objectType, field, source, args)
}

// BatchResolveAsync resolves tasks in order, one call record per task.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	m.mu.Lock()
	m.batchSeq++
	batchID := m.batchSeq
	m.mu.Unlock()

	results := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		m.record(Call{
			Kind:       CallKindAsync,
			ObjectType: t.ObjectType,
			Field:      t.Field,
			Source:     t.Source,
			Args:       t.Args,
			BatchID:    batchID,
		})
		v, err := m.resolve(ctx, t.ObjectType, t.Field, t.Source, t.Args)
		results[i] = AsyncResolveResult{Value: v, Error: err}
	}
	return results
}

func (m *MockRuntime) SerializeLeafValue(ctx context.Context, scalarTypeName string, value any) (any, error) {
	return value, nil
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// BatchCount reports how many times BatchResolveAsync was called.
func (m *MockRuntime) BatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchSeq
}
