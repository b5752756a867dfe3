package entity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bartosicilia/TaxlexIA/internal/common"
)

// Registry holds the entities of a session keyed by unique name, with one
// of them selected as active.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	order    []string
	active   string
}

func NewRegistry() *Registry {
	return &Registry{entities: map[string]*Entity{}}
}

// Create adds a fresh entity. The first entity created becomes active.
func (r *Registry) Create(name string) (*Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewAppError("INVALID_ENTITY", "entity name is required", common.ErrInvalidInput)
	}
	e := New(name)
	if err := r.Add(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Add registers an already built entity, e.g. one read by LoadFile.
func (r *Registry) Add(e *Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entities[e.Name]; exists {
		return common.NewAppError("DUPLICATE_ENTITY", fmt.Sprintf("entity %q already exists", e.Name), common.ErrInvalidInput)
	}
	r.entities[e.Name] = e
	r.order = append(r.order, e.Name)
	if r.active == "" {
		r.active = e.Name
	}
	return nil
}

func (r *Registry) Get(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	if !ok {
		return nil, common.NewAppError("ENTITY_NOT_FOUND", fmt.Sprintf("entity %q", name), common.ErrNotFound)
	}
	return e, nil
}

func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[name]; !ok {
		return common.NewAppError("ENTITY_NOT_FOUND", fmt.Sprintf("entity %q", name), common.ErrNotFound)
	}
	r.active = name
	return nil
}

// Active returns the selected entity, or nil when the registry is empty.
func (r *Registry) Active() *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[r.active]
}

// Names returns entity names in creation order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
