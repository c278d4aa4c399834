package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/components/internal/ir"
)

// DefaultBaseName is the template file name looked up by LoadDir.
const DefaultBaseName = "serverless"

// Extensions searched by LoadDir, in priority order.
var Extensions = []string{".yml", ".yaml", ".json", ".cue"}

// Load error codes.
const (
	ErrCodeNotFound    = "TemplateNotFound"
	ErrCodeReadFailed  = "TemplateReadFailed"
	ErrCodeParseFailed = "TemplateParseFailed"
	ErrCodeUnsupported = "TemplateUnsupported"
)

// LoadError reports a template file that could not be read or decoded.
type LoadError struct {
	Code string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// FindFile returns the first "<base><ext>" in dir, or "" when none exists.
func FindFile(dir, base string) string {
	for _, ext := range Extensions {
		p := filepath.Join(dir, base+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// LoadDir loads the serverless template in dir.
func LoadDir(dir string) (*Tree, string, error) {
	p := FindFile(dir, DefaultBaseName)
	if p == "" {
		return nil, "", &LoadError{Code: ErrCodeNotFound, Path: filepath.Join(dir, DefaultBaseName+".yml")}
	}
	t, err := LoadFile(p)
	return t, p, err
}

// LoadFile decodes a yaml, json or cue template into a Tree.
// Top-level key order follows the file for yaml and cue; json is sorted.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Err: err}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Path: path, Err: err}
	}

	var (
		obj   ir.IRObject
		order []string
	)
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		obj, order, err = decodeYAML(data)
	case ".json":
		obj, err = decodeJSON(data)
	case ".cue":
		obj, order, err = decodeCUE(path, data)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Path: path}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: path, Err: err}
	}
	return ParseOrdered(obj, order), nil
}

func decodeYAML(data []byte) (ir.IRObject, []string, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, err
	}
	if len(doc.Content) == 0 {
		return ir.IRObject{}, nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("top level must be a mapping")
	}

	var order []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		order = append(order, root.Content[i].Value)
	}

	var raw map[string]any
	if err := root.Decode(&raw); err != nil {
		return nil, nil, err
	}
	obj, err := ir.ObjectFromAny(raw)
	return obj, order, err
}

func decodeJSON(data []byte) (ir.IRObject, error) {
	var obj ir.IRObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeCUE(path string, data []byte) (ir.IRObject, []string, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, nil, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, nil, err
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, nil, err
	}
	obj := ir.IRObject{}
	var order []string
	for iter.Next() {
		var raw any
		if err := iter.Value().Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", iter.Label(), err)
		}
		fv, err := ir.FromAny(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", iter.Label(), err)
		}
		obj[iter.Label()] = fv
		order = append(order, iter.Label())
	}
	return obj, order, nil
}
