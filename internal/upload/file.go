package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest payload accepted for upload.
const MaxFileSize int64 = 500 << 20

// AllowedMediaTypes lists the accepted container types.
var AllowedMediaTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"video/webm":      true,
}

var extensionTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".qt":   "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
}

// File is a candidate payload. Open is called once per transfer attempt,
// so a retry re-reads from the start.
type File struct {
	Name      string
	Size      int64
	MediaType string
	Path      string
	Open      func() (io.ReadCloser, error)
}

// Info is the part of a File exposed in snapshots.
type Info struct {
	Name      string
	Size      int64
	MediaType string
	Path      string
}

func (f File) info() *Info {
	return &Info{Name: f.Name, Size: f.Size, MediaType: f.MediaType, Path: f.Path}
}

// MediaTypeForPath guesses the media type from the file extension.
func MediaTypeForPath(path string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(path))]
}

// OpenFile describes a local file for upload.
func OpenFile(path string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name:      filepath.Base(path),
		Size:      st.Size(),
		MediaType: MediaTypeForPath(path),
		Path:      path,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Validate checks the media type and size limits.
func Validate(f File) error {
	if !AllowedMediaTypes[f.MediaType] {
		return &Error{Kind: KindValidation, Err: fmt.Errorf("%w: %q", ErrUnsupportedType, f.MediaType)}
	}
	if f.Size <= 0 {
		return &Error{Kind: KindValidation, Err: ErrEmptyFile}
	}
	if f.Size > MaxFileSize {
		return &Error{Kind: KindValidation, Err: fmt.Errorf("%w: %d bytes > %d", ErrFileTooLarge, f.Size, MaxFileSize)}
	}
	if f.Open == nil {
		return &Error{Kind: KindValidation, Err: fmt.Errorf("no content for %q", f.Name)}
	}
	return nil
}
