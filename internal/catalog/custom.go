package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"kairos/internal/common/fsutil"
	"kairos/internal/store"
)

// CustomModel describes a user-added model. Exactly one of FilePath and
// DownloadURL must be set.
type CustomModel struct {
	Name        string
	DisplayName string
	Description string
	FilePath    string
	DownloadURL string
	SizeBytes   int64
}

// AddCustom persists m and appends it to the catalog.
func (c *Catalog) AddCustom(ctx context.Context, m CustomModel) (Descriptor, error) {
	if c.store == nil {
		return Descriptor{}, errors.New("custom models require a database")
	}
	if (m.FilePath == "") == (m.DownloadURL == "") {
		return Descriptor{}, errors.New("exactly one of file path and download url is required")
	}
	rec := store.CustomModel{
		Name:        strings.TrimSpace(m.Name),
		DisplayName: m.DisplayName,
		Description: m.Description,
		DownloadURL: m.DownloadURL,
		SizeBytes:   m.SizeBytes,
		IsLocal:     m.FilePath != "",
	}
	if rec.IsLocal {
		p, err := fsutil.ExpandHome(m.FilePath)
		if err != nil {
			return Descriptor{}, err
		}
		if p, err = filepath.Abs(p); err != nil {
			return Descriptor{}, err
		}
		if !fsutil.FileExists(p) {
			return Descriptor{}, fmt.Errorf("model file %s does not exist", p)
		}
		rec.FilePath = p
		if rec.SizeBytes <= 0 {
			rec.SizeBytes = fsutil.FileSize(p)
		}
	}
	if rec.Name == "" {
		if rec.IsLocal {
			rec.Name = filepath.Base(rec.FilePath)
		} else {
			u, err := url.Parse(rec.DownloadURL)
			if err != nil {
				return Descriptor{}, fmt.Errorf("download url: %w", err)
			}
			rec.Name = path.Base(u.Path)
		}
	}
	if err := checkName(rec.Name); err != nil {
		return Descriptor{}, err
	}
	if rec.DisplayName == "" {
		rec.DisplayName = strings.TrimSuffix(rec.Name, filepath.Ext(rec.Name))
	}
	if _, err := c.Get(rec.Name); err == nil {
		return Descriptor{}, fmt.Errorf("model %s already exists", rec.Name)
	}

	saved, err := c.store.AddCustom(ctx, rec)
	if err != nil {
		return Descriptor{}, err
	}
	d := c.customDescriptor(saved)
	refresh(d)

	c.mu.Lock()
	c.models = append(c.models, d)
	c.byName[d.Name] = d
	out := *d
	c.mu.Unlock()
	c.log.Info().Str("model", d.Name).Bool("local", d.IsLocal).Msg("custom model added")
	return out, nil
}

// checkName rejects names that are not a single file name, since custom
// weights are stored at modelsDir/name.
func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..", name == "/":
		return fmt.Errorf("invalid model name %q", name)
	case filepath.Base(name) != name, strings.ContainsAny(name, `/\`):
		return fmt.Errorf("model name %q must not contain a path", name)
	}
	return nil
}

// RemoveCustom drops a user-added model from the store and the catalog. The
// weights of a downloaded custom model are deleted; a local file is kept.
func (c *Catalog) RemoveCustom(ctx context.Context, name string) error {
	d, err := c.Get(name)
	if err != nil {
		return err
	}
	if !d.Custom {
		return fmt.Errorf("model %s is not a custom model", name)
	}
	if !d.IsLocal {
		if err := c.Delete(name); err != nil {
			return err
		}
	}
	if err := c.store.DeleteCustom(ctx, name); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byName, name)
	for i, m := range c.models {
		if m.Name == name {
			c.models = append(c.models[:i], c.models[i+1:]...)
			break
		}
	}
	return nil
}
