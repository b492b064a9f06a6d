package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CategoryDiscovered marks models found in the models directory that no
// config entry or custom record describes.
const CategoryDiscovered = "discovered"

// scanDir lists the *.gguf files directly inside dir. A missing directory
// yields no files.
func scanDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".gguf") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// discovered returns descriptors for files in the models directory that are
// not already named in known.
func (c *Catalog) discovered(known []*Descriptor) []*Descriptor {
	names, err := scanDir(c.modelsDir)
	if err != nil {
		c.log.Warn().Err(err).Str("dir", c.modelsDir).Msg("scanning models directory failed")
		return nil
	}
	seen := make(map[string]struct{}, len(known))
	for _, d := range known {
		seen[d.Name] = struct{}{}
	}
	var out []*Descriptor
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		out = append(out, &Descriptor{
			Name:        n,
			DisplayName: strings.TrimSuffix(n, filepath.Ext(n)),
			Category:    CategoryDiscovered,
			Path:        filepath.Join(c.modelsDir, n),
		})
	}
	return out
}
