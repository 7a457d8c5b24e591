package imaging

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/imishinist/mlflow-observer/internal/models"
)

// MediaDir is the run-relative directory that holds logged images.
const MediaDir = "media/images"

// WriteImages stores imgs under root as media/images/<key>/<step>_<i>.png and
// returns the slash-separated paths relative to root.
func WriteImages(root, key string, step int64, imgs []models.Image) ([]string, error) {
	rel := make([]string, 0, len(imgs))
	for i, img := range imgs {
		p := path.Join(MediaDir, SafeKey(key), fmt.Sprintf("%d_%d.png", step, i))
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return nil, fmt.Errorf("failed to create media directory: %w", err)
		}
		if err := os.WriteFile(full, img.PNG, 0644); err != nil {
			return nil, fmt.Errorf("failed to write image %s: %w", p, err)
		}
		rel = append(rel, p)
	}
	return rel, nil
}

// SafeKey makes a record key usable as a path element.
func SafeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, key)
}
