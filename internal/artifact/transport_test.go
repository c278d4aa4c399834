package artifact

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastTransport(attempts int) *Transport {
	return NewTransport(WithAttempts(attempts), WithInitialInterval(time.Millisecond))
}

func TestTransport_PutRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(path, []byte("zipbytes"), 0o644))

	require.NoError(t, fastTransport(3).Put(context.Background(), srv.URL+"/up?sig=secret", path))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "zipbytes", string(<-received), "retry must resend the full body")
}

func TestTransport_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := fastTransport(3).Get(context.Background(), srv.URL+"/pkg.zip?sig=secret", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.NotContains(t, err.Error(), "secret", "signature must not leak into errors")
}

func TestTransport_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := fastTransport(3).Get(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTransport_GetWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, fastTransport(1).Get(context.Background(), srv.URL, path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}
