package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/components/internal/ir"
)

// Targets hands out a pre-signed upload/download URL pair for one package.
type Targets interface {
	PackageURLs(ctx context.Context, org, accessKey string) (ir.PackageURLs, error)
}

// TargetsFunc adapts a function to Targets.
type TargetsFunc func(ctx context.Context, org, accessKey string) (ir.PackageURLs, error)

func (f TargetsFunc) PackageURLs(ctx context.Context, org, accessKey string) (ir.PackageURLs, error) {
	return f(ctx, org, accessKey)
}

// StagerOption configures a Stager.
type StagerOption func(*Stager)

// WithTransport sets the transport used for uploads.
func WithTransport(t *Transport) StagerOption {
	return func(s *Stager) {
		s.transport = t
	}
}

// WithStagerLogger sets the stager's logger.
func WithStagerLogger(logger *slog.Logger) StagerOption {
	return func(s *Stager) {
		s.logger = logger
	}
}

// WithProgress receives the "Building", "Packaging" and "Uploading" phases.
func WithProgress(fn func(msg string)) StagerOption {
	return func(s *Stager) {
		s.progress = fn
	}
}

// WithScratchDir sets where package files are written before upload.
func WithScratchDir(dir string) StagerOption {
	return func(s *Stager) {
		s.scratch = dir
	}
}

// Stager uploads local source directories and returns the URLs children
// download them from.
type Stager struct {
	targets   Targets
	transport *Transport
	logger    *slog.Logger
	progress  func(string)
	scratch   string
}

// NewStager creates a Stager that obtains upload targets from targets.
func NewStager(targets Targets, opts ...StagerOption) *Stager {
	s := &Stager{
		targets:  targets,
		logger:   slog.Default(),
		progress: func(string) {},
		scratch:  os.TempDir(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = NewTransport(WithTransportLogger(s.logger))
	}
	return s
}

// StageInputs replaces every local source in inputs with the download URL
// of its uploaded package: the "src" input itself and the "src" input of
// each child declaration under "components". Sources that pack the same
// directory are uploaded once. Inputs without local source are returned
// as-is; the input object is never mutated.
func (s *Stager) StageInputs(ctx context.Context, org, accessKey string, inputs ir.IRObject) (ir.IRObject, error) {
	var (
		specs []SourceSpec
		sites []string // "" is the top-level src, otherwise a child alias
	)
	spec, ok, err := SourceFrom(inputs)
	if err != nil {
		return nil, err
	}
	if ok {
		specs = append(specs, spec)
		sites = append(sites, "")
	}

	decls, _ := inputs[ir.ComponentsKey].(ir.IRObject)
	for _, alias := range decls.SortedKeys() {
		spec, ok, err := SourceFrom(childInputs(decls, alias))
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", alias, err)
		}
		if ok {
			specs = append(specs, spec)
			sites = append(sites, alias)
		}
	}
	if len(specs) == 0 {
		return inputs, nil
	}

	urls, err := s.StageAll(ctx, org, accessKey, specs)
	if err != nil {
		return nil, err
	}
	out := inputs.Clone()
	for i, site := range sites {
		if site == "" {
			out[SourceKey] = ir.IRString(urls[i])
			continue
		}
		childInputs(out[ir.ComponentsKey].(ir.IRObject), site)[SourceKey] = ir.IRString(urls[i])
	}
	return out, nil
}

// childInputs returns the inputs object of the declaration at alias, or nil.
func childInputs(decls ir.IRObject, alias string) ir.IRObject {
	decl, _ := decls[alias].(ir.IRObject)
	inputs, _ := decl["inputs"].(ir.IRObject)
	return inputs
}

// Stage builds (when a hook is set), packs and uploads one source.
// Requesting the upload target and packing run concurrently.
func (s *Stager) Stage(ctx context.Context, org, accessKey string, spec SourceSpec) (string, error) {
	if spec.NeedsBuild() {
		s.progress("Building")
		if err := RunHook(ctx, spec.Src, spec.Hook); err != nil {
			return "", err
		}
	}

	dir, err := spec.UploadDir()
	if err != nil {
		return "", &StagingError{Code: ErrCodeInvalidSource, Src: spec.Src, Err: err}
	}
	return s.upload(ctx, org, accessKey, dir)
}

// StageAll stages every spec concurrently. Specs that pack the same
// directory are uploaded once. The first failure cancels the rest.
// URLs are returned in spec order.
func (s *Stager) StageAll(ctx context.Context, org, accessKey string, specs []SourceSpec) ([]string, error) {
	type job struct {
		spec SourceSpec
		url  string
	}
	jobs := make(map[string]*job)
	keys := make([]string, len(specs))
	for i, spec := range specs {
		dir, err := spec.UploadDir()
		if err != nil {
			return nil, &StagingError{Code: ErrCodeInvalidSource, Src: spec.Src, Err: err}
		}
		keys[i] = dir
		if _, ok := jobs[dir]; !ok {
			jobs[dir] = &job{spec: spec}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			url, err := s.Stage(gctx, org, accessKey, j.spec)
			if err != nil {
				return err
			}
			j.url = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	urls := make([]string, len(specs))
	for i, key := range keys {
		urls[i] = jobs[key].url
	}
	return urls, nil
}

func (s *Stager) upload(ctx context.Context, org, accessKey, dir string) (string, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("not a directory")
		}
		return "", &StagingError{Code: ErrCodeInvalidSource, Src: dir, Err: err}
	}

	pkg := filepath.Join(s.scratch, uuid.NewString()+".zip")
	defer os.Remove(pkg)

	var urls ir.PackageURLs
	s.progress("Packaging")
	s.logger.Debug("packaging source", "src", dir, "package", pkg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.targets.PackageURLs(gctx, org, accessKey)
		if err != nil {
			return &StagingError{Code: ErrCodeTargetsFailed, Src: dir, Err: err}
		}
		urls = u
		return nil
	})
	g.Go(func() error {
		if err := PackFile(dir, pkg); err != nil {
			return &StagingError{Code: ErrCodePackFailed, Src: dir, Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	s.progress("Uploading")
	s.logger.Debug("uploading package", "src", dir, "url", redact(urls.Upload))
	if err := s.transport.Put(ctx, urls.Upload, pkg); err != nil {
		return "", &StagingError{Code: ErrCodeUploadFailed, Src: dir, Err: err}
	}
	s.logger.Debug("upload completed", "src", dir)
	return urls.Download, nil
}
