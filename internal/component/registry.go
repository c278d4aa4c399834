package component

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/components/internal/ir"
)

// Loader resolves a component reference to its implementation.
type Loader interface {
	Resolve(ctx context.Context, ref ir.ComponentRef) (Factory, error)
}

// Registry is an in-process Loader.
//
// Lookups try the exact name@version first, then name@dev, so a locally
// registered development build serves every version of a component.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under ref, which is "name" or "name@version".
func (r *Registry) Register(ref string, f Factory) error {
	parsed, err := ir.ParseComponentRef(ref)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("register %s: nil factory", parsed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := parsed.String()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("register %s: already registered", key)
	}
	r.factories[key] = f
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(ref string, f Factory) {
	if err := r.Register(ref, f); err != nil {
		panic(err)
	}
}

func (r *Registry) Resolve(ctx context.Context, ref ir.ComponentRef) (Factory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[ref.String()]; ok {
		return f, nil
	}
	dev := ir.ComponentRef{Name: ref.Name, Version: ir.DefaultVersion}
	if f, ok := r.factories[dev.String()]; ok {
		return f, nil
	}
	return nil, &ModuleNotFoundError{Ref: ref.String()}
}

// Refs lists the registered references.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.factories))
	for ref := range r.factories {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
