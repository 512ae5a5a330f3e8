package store

import (
	"context"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/goccy/go-json"
	graph "github.com/hanpama/usergraph/internal/graph"
)

// Data is the content of a Memory store, in the same shape the REST backend
// serves.
type Data struct {
	Users     []map[string]any `json:"users"`
	Companies []map[string]any `json:"companies"`
}

// Memory is an in-process store of users and companies. It is owned by
// whoever constructs it; there is no package-level instance.
type Memory struct {
	mu        sync.RWMutex
	users     []map[string]any
	companies []map[string]any
}

// NewMemory returns a store holding a copy of data.
func NewMemory(data Data) (*Memory, error) {
	m := &Memory{}
	seen := make(map[string]struct{})
	for _, u := range data.Users {
		id, err := idOf(u)
		if err != nil {
			return nil, fmt.Errorf("user: %w", err)
		}
		if _, dup := seen["u"+id]; dup {
			return nil, fmt.Errorf("user %q is duplicated", id)
		}
		seen["u"+id] = struct{}{}
		m.users = append(m.users, maps.Clone(u))
	}
	for _, c := range data.Companies {
		id, err := idOf(c)
		if err != nil {
			return nil, fmt.Errorf("company: %w", err)
		}
		if _, dup := seen["c"+id]; dup {
			return nil, fmt.Errorf("company %q is duplicated", id)
		}
		seen["c"+id] = struct{}{}
		m.companies = append(m.companies, maps.Clone(c))
	}
	return m, nil
}

// LoadFile reads a JSON document shaped like Data.
func LoadFile(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data Data
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewMemory(data)
}

// Seed is the built-in data set.
func Seed() Data {
	return Data{
		Users: []map[string]any{
			{"id": "23", "firstName": "Bill", "age": 30, "companyId": "1"},
			{"id": "24", "firstName": "Samantha", "age": 31, "companyId": "2"},
			{"id": "40", "firstName": "Alex", "age": 40, "companyId": "1"},
		},
		Companies: []map[string]any{
			{"id": "1", "name": "Apple", "description": "iphone"},
			{"id": "2", "name": "Google", "description": "search"},
		},
	}
}

func idOf(entity map[string]any) (string, error) {
	id, ok := entity["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("entity without a string id: %v", entity)
	}
	return id, nil
}

// User returns the user with id, or a *graph.NotFoundError.
func (m *Memory) User(ctx context.Context, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u["id"] == id {
			return maps.Clone(u), nil
		}
	}
	return nil, &graph.NotFoundError{Kind: "User", ID: id}
}

// Company returns the company with id, or a *graph.NotFoundError.
func (m *Memory) Company(ctx context.Context, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.companies {
		if c["id"] == id {
			return maps.Clone(c), nil
		}
	}
	return nil, &graph.NotFoundError{Kind: "Company", ID: id}
}

// CompanyUsers returns the users whose companyId is companyID, in insertion
// order.
func (m *Memory) CompanyUsers(ctx context.Context, companyID string) ([]map[string]any, error) {
	if _, err := m.Company(ctx, companyID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []map[string]any{}
	for _, u := range m.users {
		if u["companyId"] == companyID {
			out = append(out, maps.Clone(u))
		}
	}
	return out, nil
}
