package artifact

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/components/internal/ir"
)

// BucketPrefix is the URL path under which a Bucket serves packages.
const BucketPrefix = "/packages/"

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9-]+\.zip$`)

// Bucket is a directory-backed package store with PUT and GET by key.
// It stands in for the pre-signed object store when the engine runs
// locally (components serve) and in tests.
type Bucket struct {
	dir    string
	logger *slog.Logger
	newKey func() string
}

// NewBucket stores packages in dir, creating it on first write.
func NewBucket(dir string, logger *slog.Logger) *Bucket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bucket{
		dir:    dir,
		logger: logger,
		newKey: func() string { return uuid.NewString() + ".zip" },
	}
}

// URLs issues a fresh upload/download pair rooted at baseURL.
func (b *Bucket) URLs(baseURL string) ir.PackageURLs {
	u := strings.TrimSuffix(baseURL, "/") + BucketPrefix + b.newKey()
	return ir.PackageURLs{Upload: u, Download: u}
}

// ServeHTTP handles PUT and GET on BucketPrefix + key.
func (b *Bucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, BucketPrefix)
	if key == r.URL.Path || !keyPattern.MatchString(key) {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(b.dir, key)

	switch r.Method {
	case http.MethodPut:
		if err := b.write(path, r.Body); err != nil {
			b.logger.Error("store package", "key", key, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.Copy(w, f)
	default:
		w.Header().Set("Allow", "GET, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (b *Bucket) write(path string, body io.Reader) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, "upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write package: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
