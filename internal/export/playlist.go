package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/studyslice/studyslice/internal/catalog"
)

// GeneratePlaylist renders clips as an HLS VOD media playlist. Each clip is
// one entry whose URI carries a temporal media fragment (#t=start,end) on
// the clip's media reference, or on media when the clip has none.
func GeneratePlaylist(clips []catalog.Clip, media string) (string, error) {
	p, err := m3u8.NewMediaPlaylist(0, uint(max(len(clips), 1)))
	if err != nil {
		return "", fmt.Errorf("create playlist: %w", err)
	}
	p.MediaType = m3u8.VOD

	for _, c := range clips {
		src := c.MediaReference
		if src == "" {
			src = media
		}
		if src == "" {
			return "", fmt.Errorf("clip %s has no media reference", c.ID)
		}
		uri := fmt.Sprintf("%s#t=%s,%s", src, seconds(c.StartSeconds), seconds(c.EndSeconds))
		if err := p.Append(uri, c.EndSeconds-c.StartSeconds, c.Title); err != nil {
			return "", fmt.Errorf("append clip %s: %w", c.ID, err)
		}
	}
	p.Close()
	return p.String(), nil
}

// WritePlaylist writes dir/<title>.m3u8 and returns its path.
func WritePlaylist(dir, title string, clips []catalog.Clip, media string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("export directory is required")
	}
	body, err := GeneratePlaylist(clips, media)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, FileName(title)+".m3u8")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("write playlist: %w", err)
	}
	return path, nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
