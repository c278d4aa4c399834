package artifact

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
)

// IgnoreFile names the per-directory ignore list read by Pack.
const IgnoreFile = ".slsignore"

// DefaultIgnore is always excluded from packages.
var DefaultIgnore = []string{".git", ".serverless"}

// packEpoch is stamped on every entry so identical trees pack to identical
// bytes.
var packEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Pack writes a zip of dir to w. Entries are sorted, use forward slashes,
// and skip DefaultIgnore plus the patterns in dir/.slsignore.
func Pack(dir string, w io.Writer) error {
	matcher, err := ignoreMatcher(dir)
	if err != nil {
		return err
	}

	var files []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		ignored, err := matcher.MatchesOrParentMatches(rel)
		if err != nil {
			return err
		}
		if ignored {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)

	zw := zip.NewWriter(w)
	for _, rel := range files {
		if err := addFile(zw, dir, rel); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

// PackFile packs dir into a new file at path.
func PackFile(dir, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create package: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close package: %w", cerr)
		}
	}()
	return Pack(dir, f)
}

func ignoreMatcher(dir string) (*patternmatcher.PatternMatcher, error) {
	patterns := append([]string{}, DefaultIgnore...)

	f, err := os.Open(filepath.Join(dir, IgnoreFile))
	switch {
	case err == nil:
		defer f.Close()
		extra, err := ignorefile.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", IgnoreFile, err)
		}
		patterns = append(patterns, extra...)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", IgnoreFile, err)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("ignore patterns: %w", err)
	}
	return matcher, nil
}

func addFile(zw *zip.Writer, dir, rel string) error {
	path := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate
	hdr.Modified = packEpoch

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", rel, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("add %s: %w", rel, err)
	}
	return nil
}
