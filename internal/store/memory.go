package store

import (
	"context"
	"sync"

	"github.com/roach88/components/internal/ir"
)

// Memory is an in-process StateStore. State is deep-copied on the way in
// and out, so callers never share maps with the store.
type Memory struct {
	mu     sync.Mutex
	states map[string]ir.IRObject
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{states: make(map[string]ir.IRObject)}
}

func (m *Memory) SaveState(ctx context.Context, id ir.Identity, state ir.IRObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id.Key()] = state.Clone()
	return nil
}

func (m *Memory) ReadState(ctx context.Context, id ir.Identity) (ir.IRObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id.Key()].Clone(), nil
}

// Len returns the number of instances with saved state.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
