package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/components/internal/ir"
)

// DefaultStateDir is the project-relative directory used by FileStore.
const DefaultStateDir = ".serverless"

// FileStore keeps each instance's state in
// "<dir>/<org>/<app>/<stage>/<name>.json". Empty identity fields are
// written as "-". Used by local runs that have no engine backend.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir. The directory is created
// on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path(id ir.Identity) string {
	return filepath.Join(f.dir, segment(id.Org), segment(id.App), segment(id.Stage), id.Name+".json")
}

func segment(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// SaveState writes the state file atomically.
func (f *FileStore) SaveState(ctx context.Context, id ir.Identity, state ir.IRObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		state = ir.IRObject{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save state %s: %w", id.Name, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("save state %s: %w", id.Name, err)
	}

	tmp, err := os.CreateTemp(dir, id.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save state %s: %w", id.Name, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save state %s: %w", id.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save state %s: %w", id.Name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save state %s: %w", id.Name, err)
	}
	return nil
}

// ReadState reads the state file, or returns an empty object when absent.
func (f *FileStore) ReadState(ctx context.Context, id ir.Identity) (ir.IRObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ir.IRObject{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", id.Name, err)
	}
	var state ir.IRObject
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("read state %s: %w", id.Name, err)
	}
	if state == nil {
		state = ir.IRObject{}
	}
	return state, nil
}
