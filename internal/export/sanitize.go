package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/studyslice/studyslice/internal/catalog"
)

const maxFileNameLen = 80

// FileName turns a title into a safe file stem. Anything that is not a
// letter, digit, dash, dot or underscore becomes an underscore.
func FileName(title string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsControl(r):
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.Trim(b.String(), "._")
	if runes := []rune(name); len(runes) > maxFileNameLen {
		name = string(runes[:maxFileNameLen])
	}
	if name == "" {
		name = "clips"
	}
	return name
}

// WriteEDL renders clips and writes them to dir/<title>.edl, creating dir
// when needed. It returns the path written.
func WriteEDL(dir, title string, clips []catalog.Clip, frameRate float64) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, FileName(title)+".edl")
	if err := os.WriteFile(path, []byte(GenerateEDL(clips, title, frameRate)), 0644); err != nil {
		return "", fmt.Errorf("write edl: %w", err)
	}
	return path, nil
}
