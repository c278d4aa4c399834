package builtin

import (
	"github.com/roach88/components/internal/component"
)

// Refs of the builtin components.
const (
	EchoRef  = "echo"
	FilesRef = "files"
	StackRef = "stack"
)

// Register adds every builtin component to reg.
func Register(reg *component.Registry) error {
	for ref, f := range map[string]component.Factory{
		EchoRef:  NewEcho,
		FilesRef: NewFiles,
		StackRef: NewStack,
	} {
		if err := reg.Register(ref, f); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a registry holding only the builtin components.
func Registry() *component.Registry {
	reg := component.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
