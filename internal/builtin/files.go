package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/roach88/components/internal/artifact"
	"github.com/roach88/components/internal/component"
	"github.com/roach88/components/internal/ir"
)

// NewFiles builds a component that inventories the directory passed as
// "src" and keeps the result as state.
func NewFiles(rt *component.Runtime) (component.Component, error) {
	return component.Methods{
		"deploy": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
			src, ok := inputs.GetString(artifact.SourceKey)
			if !ok || src == "" {
				return nil, fmt.Errorf("files: input %q must be a directory path", artifact.SourceKey)
			}
			if err := rt.Status(ctx, "Scanning"); err != nil {
				return nil, err
			}

			var (
				count int64
				size  int64
				names ir.IRArray
			)
			err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					return err
				}
				rel, err := filepath.Rel(src, path)
				if err != nil {
					return err
				}
				count++
				size += info.Size()
				names = append(names, ir.IRString(filepath.ToSlash(rel)))
				return rt.Debug(ctx, "found "+filepath.ToSlash(rel))
			})
			if err != nil {
				return nil, fmt.Errorf("files: scan %s: %w", src, err)
			}

			outputs := ir.IRObject{
				"files": ir.IRInt(count),
				"bytes": ir.IRInt(size),
				"names": names,
			}
			rt.State()["files"] = ir.IRInt(count)
			rt.State()["bytes"] = ir.IRInt(size)
			if err := rt.Save(ctx); err != nil {
				return nil, err
			}
			if err := rt.Log(ctx, fmt.Sprintf("%d files, %d bytes", count, size)); err != nil {
				return nil, err
			}
			return outputs, nil
		},
		"remove": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
			delete(rt.State(), "files")
			delete(rt.State(), "bytes")
			return ir.IRObject{}, rt.Save(ctx)
		},
	}, nil
}
