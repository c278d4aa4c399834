package artifact

import (
	"context"
	"log/slog"
	"os"
)

// Fetcher downloads packages and unpacks them into local directories.
type Fetcher struct {
	transport *Transport
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher. A nil transport uses NewTransport().
func NewFetcher(transport *Transport, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if transport == nil {
		transport = NewTransport(WithTransportLogger(logger))
	}
	return &Fetcher{transport: transport, logger: logger}
}

// Fetch downloads the package at url and extracts it into dest.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &StagingError{Code: ErrCodeDownloadFailed, Src: redact(url), Err: err}
	}
	archive, err := os.CreateTemp("", "package-*.zip")
	if err != nil {
		return &StagingError{Code: ErrCodeDownloadFailed, Src: redact(url), Err: err}
	}
	archive.Close()
	defer os.Remove(archive.Name())

	f.logger.Debug("downloading package", "url", redact(url), "dest", dest)
	if err := f.transport.Get(ctx, url, archive.Name()); err != nil {
		return &StagingError{Code: ErrCodeDownloadFailed, Src: redact(url), Err: err}
	}
	if err := ExtractFile(archive.Name(), dest); err != nil {
		return &StagingError{Code: ErrCodeExtractFailed, Src: redact(url), Err: err}
	}
	return nil
}
