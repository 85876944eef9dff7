// Package playback serves the local preview of a submitted video over
// loopback HTTP with byte-range support, so any external player can open it
// while the upload runs.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/studyslice/studyslice/internal/logging"
	"github.com/studyslice/studyslice/internal/upload"
)

// ErrUnknownMedia is returned when a reference was never registered or has
// been released.
var ErrUnknownMedia = errors.New("unknown media reference")

type entry struct {
	name string
	path string
}

// Server maps preview references to local files and streams them.
type Server struct {
	logger *slog.Logger

	mu      sync.RWMutex
	baseURL string
	entries map[string]entry
	latest  string

	httpServer *http.Server
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{
		logger:  logging.WithComponent(logger, "playback"),
		entries: make(map[string]entry),
	}
}

// Handler returns the router. GET /media serves the most recent preview,
// GET /media/{ref} a specific one.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Get("/media", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ref := s.latest
		s.mu.RUnlock()
		s.serveRef(w, r, ref)
	})
	r.Get("/media/{ref}", func(w http.ResponseWriter, r *http.Request) {
		s.serveRef(w, r, chi.URLParam(r, "ref"))
	})
	return r
}

// Start binds a loopback listener on port (0 picks a free one) and serves
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listen for playback: %w", err)
	}

	s.mu.Lock()
	s.baseURL = "http://" + ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("playback server listening", "addr", ln.Addr().String())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("playback server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	return nil
}

// BaseURL is the root the server listens on, empty before Start.
func (s *Server) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// Acquire registers a local file and returns its preview reference: a URL
// when the server is listening, the bare reference otherwise.
func (s *Server) Acquire(name, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no local file for %q", name)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("preview source: %w", err)
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{name: name, path: path}
	s.latest = id

	s.logger.Debug("preview registered", "ref", id, "path", logging.SanitizePath(path))
	if s.baseURL == "" {
		return id, nil
	}
	return s.baseURL + "/media/" + id, nil
}

// Release forgets a reference returned by Acquire.
func (s *Server) Release(ref string) {
	id := refID(ref)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	if s.latest == id {
		s.latest = ""
	}
}

// Lookup resolves a reference to its local path.
func (s *Server) Lookup(ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[refID(ref)]
	if !ok {
		return "", ErrUnknownMedia
	}
	return e.path, nil
}

func refID(ref string) string {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '/' {
			return ref[i+1:]
		}
	}
	return ref
}

func (s *Server) serveRef(w http.ResponseWriter, r *http.Request, ref string) {
	path, err := s.Lookup(ref)
	if err != nil {
		http.Error(w, "no media available", http.StatusNotFound)
		return
	}
	if err := ServeFile(w, r, path); err != nil {
		s.logger.Error("failed to serve preview", "ref", ref, "error", err)
	}
}

// ServeFile writes the file at filePath, honouring a Range header.
func ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	contentType := upload.MediaTypeForPath(filePath)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rng, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil && !errors.Is(err, ErrInvalidRange):
		return err
	}

	if rng == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, file)
		}
		return nil
	}

	if _, err := file.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(rng.ContentLength(), 10))
	w.Header().Set("Content-Range", rng.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		io.CopyN(w, file, rng.ContentLength())
	}
	return nil
}
