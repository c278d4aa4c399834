package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates "prefix-1", "prefix-2", ... so invocation ids in
// recorded output are stable across runs.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs returns a generator using prefix, "inv" when empty.
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "inv"
	}
	return &SequenceIDs{prefix: prefix}
}

func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
