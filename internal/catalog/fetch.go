package catalog

import (
	"context"
	"errors"
	"fmt"

	"kairos/internal/download"
	"kairos/internal/events"
)

// Download fetches the weights of name and verifies them. A transfer that is
// paused returns an error for which IsPaused is true and keeps the partial
// file; calling Download again resumes it. onProgress receives a
// non-decreasing percentage and may be nil.
func (c *Catalog) Download(ctx context.Context, name string, onProgress func(float64)) error {
	d, err := c.Get(name)
	if err != nil {
		return err
	}
	if d.IsLocal {
		return fmt.Errorf("model %s is a local file and cannot be downloaded", name)
	}
	if d.URL == "" {
		return fmt.Errorf("model %s has no download url", name)
	}

	l := c.lockFor(name)
	l.Lock()
	defer l.Unlock()

	// a concurrent Download may have finished while we waited
	if d, _ = c.Get(name); d.Downloaded && d.State == StateCompleted {
		return nil
	}

	c.update(name, func(d *Descriptor) {
		d.State, d.DownloadError = StateDownloading, ""
	})
	c.pub.Publish(events.Event{Name: events.DownloadStarted, Model: name, Fields: map[string]any{"url": d.URL}})
	c.log.Info().Str("model", name).Str("url", d.URL).Msg("download started")

	err = c.fetcher.Download(ctx, download.Request{
		Key:  name,
		URL:  d.URL,
		Dest: d.Path,
		OnProgress: func(p download.Progress) {
			pct := c.advance(name, p.Percent)
			if onProgress != nil {
				onProgress(pct)
			}
		},
	})
	switch {
	case err == nil:
	case download.IsCanceled(err) || errors.Is(err, context.Canceled):
		c.update(name, func(d *Descriptor) { d.State = StatePaused })
		c.pub.Publish(events.Event{Name: events.DownloadPaused, Model: name})
		c.log.Info().Str("model", name).Msg("download paused")
		return pausedError{name: name}
	default:
		c.fail(name, err.Error())
		return fmt.Errorf("download %s: %w", name, err)
	}

	c.update(name, func(d *Descriptor) { d.State = StateVerifying })
	if err := verifyFile(name, d.Path); err != nil {
		c.fail(name, VerifyFailedMessage)
		c.log.Warn().Err(err).Str("model", name).Msg("downloaded file failed verification")
		return err
	}
	c.update(name, func(d *Descriptor) {
		d.State, d.Progress, d.Downloaded = StateCompleted, 100, true
		refresh(d)
	})
	if onProgress != nil {
		onProgress(100)
	}
	c.pub.Publish(events.Event{Name: events.DownloadCompleted, Model: name})
	c.log.Info().Str("model", name).Msg("download completed")
	return nil
}

// Resume continues a paused or failed download.
func (c *Catalog) Resume(ctx context.Context, name string, onProgress func(float64)) error {
	return c.Download(ctx, name, onProgress)
}

// Pause stops the in-flight transfer of name. It reports whether one was
// running.
func (c *Catalog) Pause(name string) bool {
	return c.fetcher.Cancel(name)
}

// advance raises the stored progress of name to pct and returns the stored
// value, so callers never observe progress going backwards.
func (c *Catalog) advance(name string, pct float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.byName[name]
	if !ok {
		return pct
	}
	if pct > d.Progress {
		d.Progress = min(pct, 100)
	}
	return d.Progress
}

func (c *Catalog) fail(name, msg string) {
	c.update(name, func(d *Descriptor) {
		d.State, d.DownloadError = StateFailed, msg
	})
	c.pub.Publish(events.Event{Name: events.DownloadFailed, Model: name, Fields: map[string]any{"error": msg}})
}
