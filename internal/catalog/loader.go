package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/studyslice/studyslice/internal/logging"
)

// maxDocumentSize bounds how much of a clip document is read.
const maxDocumentSize = 8 << 20

// Fetcher retrieves and parses a clip document.
type Fetcher interface {
	Fetch(ctx context.Context) (ClipSet, error)
}

// StatusError is a non-2xx answer from the clip document endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("clip document request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPFetcher loads the document with a GET.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPFetcher(url string, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (ClipSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return ClipSet{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ClipSet{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ClipSet{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return ClipSet{}, fmt.Errorf("read clip document: %w", err)
	}
	return Parse(data, f.url, f.logger)
}

// FileFetcher loads the document from the local filesystem.
type FileFetcher struct {
	path   string
	logger *slog.Logger
}

func NewFileFetcher(path string, logger *slog.Logger) *FileFetcher {
	return &FileFetcher{path: path, logger: logger}
}

func (f *FileFetcher) Fetch(ctx context.Context) (ClipSet, error) {
	if err := ctx.Err(); err != nil {
		return ClipSet{}, err
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return ClipSet{}, fmt.Errorf("open clip document: %w", err)
	}
	defer fh.Close()

	data, err := io.ReadAll(io.LimitReader(fh, maxDocumentSize))
	if err != nil {
		return ClipSet{}, fmt.Errorf("read clip document: %w", err)
	}
	return Parse(data, logging.SanitizePath(f.path), f.logger)
}

// NewFetcher picks an HTTP or file fetcher from the location's form.
func NewFetcher(location string, logger *slog.Logger) Fetcher {
	logger = logging.WithComponent(logger, "catalog")
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPFetcher(location, logger)
	}
	return NewFileFetcher(strings.TrimPrefix(location, "file://"), logger)
}

// Loader always yields a clip set.
type Loader interface {
	Load(ctx context.Context) ClipSet
}

// FallbackLoader serves a default set whenever its fetcher fails.
type FallbackLoader struct {
	fetcher  Fetcher
	fallback ClipSet
	logger   *slog.Logger
}

// WithFallback wraps fetcher so that loading never fails.
func WithFallback(fetcher Fetcher, fallback ClipSet, logger *slog.Logger) *FallbackLoader {
	return &FallbackLoader{
		fetcher:  fetcher,
		fallback: fallback,
		logger:   logging.WithComponent(logger, "catalog"),
	}
}

func (l *FallbackLoader) Load(ctx context.Context) ClipSet {
	set, err := l.fetcher.Fetch(ctx)
	if err != nil {
		l.logger.Warn("clip catalog unavailable, using fallback",
			"kind", "CatalogLoadFailed",
			"error", err,
			"fallback_clips", l.fallback.Len(),
		)
		return l.fallback
	}
	l.logger.Info("clip catalog loaded", "source", set.Source, "clips", set.Len())
	return set
}
