package artifact

import (
	"path/filepath"
	"strings"

	"github.com/roach88/components/internal/ir"
)

// SourceKey is the input key that carries component code.
const SourceKey = "src"

// SourceSpec is a parsed "src" input. It accepts three shapes:
//
//	src: ./site
//	src: {src: ./site}
//	src: {src: ./site, hook: npm run build, dist: build}
type SourceSpec struct {
	Src  string
	Hook string
	Dist string
}

// ParseSource reads a "src" value. Strings and objects with a string "src"
// field are accepted; anything else is ErrCodeInvalidSource.
func ParseSource(v ir.IRValue) (SourceSpec, error) {
	switch val := v.(type) {
	case ir.IRString:
		if val != "" {
			return SourceSpec{Src: string(val)}, nil
		}
	case ir.IRObject:
		src, ok := val.GetString("src")
		if !ok || src == "" {
			break
		}
		spec := SourceSpec{Src: src}
		spec.Hook, _ = val.GetString("hook")
		spec.Dist, _ = val.GetString("dist")
		return spec, nil
	}
	return SourceSpec{}, &StagingError{Code: ErrCodeInvalidSource}
}

// SourceFrom returns the parsed "src" input, or ok=false when inputs carry
// no local source. A "src" that is already a package URL, or that still
// holds a placeholder, is not local and is left for whoever receives it.
func SourceFrom(inputs ir.IRObject) (SourceSpec, bool, error) {
	v, ok := inputs[SourceKey]
	if !ok {
		return SourceSpec{}, false, nil
	}
	if _, isNull := v.(ir.IRNull); isNull {
		return SourceSpec{}, false, nil
	}
	spec, err := ParseSource(v)
	if err != nil {
		return SourceSpec{}, true, err
	}
	if IsRemote(spec.Src) || strings.Contains(spec.Src, "${") {
		return SourceSpec{}, false, nil
	}
	return spec, true, nil
}

// IsRemote reports whether src is a package URL rather than a local path.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// NeedsBuild reports whether a build hook runs before packing. The hook only
// runs when a dist directory is named as well.
func (s SourceSpec) NeedsBuild() bool {
	return s.Hook != "" && s.Dist != ""
}

// UploadDir is the absolute directory that gets packed.
func (s SourceSpec) UploadDir() (string, error) {
	dir := s.Src
	if s.NeedsBuild() {
		dir = filepath.Join(s.Src, s.Dist)
	}
	return filepath.Abs(dir)
}
