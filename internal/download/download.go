// Package download fetches model files over HTTP into a ".partial" sidecar
// and resumes interrupted transfers with byte-range requests.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// PartialSuffix is appended to the destination while a transfer is running.
const PartialSuffix = ".partial"

// DefaultRetries is the number of extra attempts when Options.Retries is 0.
const DefaultRetries = 3

var downloadBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "kairos",
	Subsystem: "download",
	Name:      "bytes_total",
	Help:      "Total bytes written to model files",
})

func init() {
	prometheus.MustRegister(downloadBytesTotal)
}

// Progress is reported after every chunk written.
type Progress struct {
	Written int64
	Total   int64
	Percent float64
}

// Request describes a single file transfer.
type Request struct {
	// Key identifies the transfer for Cancel. Defaults to Dest.
	Key        string
	URL        string
	Dest       string
	OnProgress func(Progress)
}

// Options configure a Downloader.
type Options struct {
	Client *http.Client
	// Retries is the number of extra attempts for transient failures.
	// Zero means DefaultRetries; a negative value disables retrying.
	Retries int
	// Backoff is the base delay between attempts.
	Backoff time.Duration
	Logger  *zerolog.Logger
}

// Downloader runs transfers and tracks a cancel function per key.
type Downloader struct {
	client  *http.Client
	retries uint64
	backoff time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New returns a Downloader with defaults applied.
func New(opts Options) *Downloader {
	d := &Downloader{
		client:  opts.Client,
		retries: retriesOrDefault(opts.Retries),
		backoff: opts.Backoff,
		log:     zerolog.Nop(),
		active:  make(map[string]context.CancelFunc),
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.backoff <= 0 {
		d.backoff = 500 * time.Millisecond
	}
	if opts.Logger != nil {
		d.log = *opts.Logger
	}
	return d
}

func retriesOrDefault(n int) uint64 {
	switch {
	case n == 0:
		return DefaultRetries
	case n < 0:
		return 0
	}
	return uint64(n)
}

// Download fetches req.URL into req.Dest. An existing partial file is resumed
// when the server honours the Range header, otherwise the transfer restarts.
// A cancelled transfer keeps its partial file and returns an error for which
// IsCanceled is true.
func (d *Downloader) Download(ctx context.Context, req Request) error {
	key := req.Key
	if key == "" {
		key = req.Dest
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if _, busy := d.active[key]; busy {
		d.mu.Unlock()
		return fmt.Errorf("download %s already in progress", key)
	}
	d.active[key] = cancel
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.active, key)
		d.mu.Unlock()
	}()

	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o750); err != nil {
		return fmt.Errorf("create parent directory for %q: %w", req.Dest, err)
	}

	backoff := retry.WithMaxRetries(d.retries, retry.NewExponential(d.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := d.attempt(ctx, req)
		if err != nil && isTransient(err) && ctx.Err() == nil {
			d.log.Warn().Err(err).Str("url", req.URL).Msg("download attempt failed; retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && ctx.Err() != nil {
		return &canceledError{dest: req.Dest, err: ctx.Err()}
	}
	return err
}

// Cancel stops the transfer registered under key. It reports whether one
// was running.
func (d *Downloader) Cancel(key string) bool {
	d.mu.Lock()
	cancel, ok := d.active[key]
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active reports whether a transfer is registered under key.
func (d *Downloader) Active(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[key]
	return ok
}

func (d *Downloader) attempt(ctx context.Context, req Request) error {
	partial := req.Dest + PartialSuffix
	var existing int64
	if fi, err := os.Stat(partial); err == nil {
		existing = fi.Size()
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return err
	}
	if existing > 0 {
		hreq.Header.Set("Range", "bytes="+strconv.FormatInt(existing, 10)+"-")
	}
	resp, err := d.client.Do(hreq)
	if err != nil {
		return &transientError{err: err}
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && existing > 0:
		// the partial file already holds every byte
		return d.finish(req, partial, existing, existing)
	case resp.StatusCode >= 500:
		return &transientError{err: fmt.Errorf("download %q: status %d", req.URL, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &StatusError{URL: req.URL, Code: resp.StatusCode}
	default:
		existing = 0
		flags |= os.O_TRUNC
	}

	total := resp.ContentLength
	if total > 0 {
		total += existing
	}

	out, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %q: %w", partial, err)
	}
	pw := &progressWriter{ctx: ctx, written: existing, total: total, onProgress: req.OnProgress}
	_, err = io.Copy(io.MultiWriter(out, pw), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &transientError{err: fmt.Errorf("write %q: %w", partial, err)}
	}
	return d.finish(req, partial, pw.written, total)
}

func (d *Downloader) finish(req Request, partial string, written, total int64) error {
	if err := os.Rename(partial, req.Dest); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", partial, req.Dest, err)
	}
	if req.OnProgress != nil {
		if total <= 0 {
			total = written
		}
		req.OnProgress(Progress{Written: written, Total: total, Percent: 100})
	}
	d.log.Info().Str("file", req.Dest).Int64("bytes", written).Msg("download complete")
	return nil
}

type progressWriter struct {
	ctx        context.Context
	written    int64
	total      int64
	onProgress func(Progress)
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	select {
	case <-pw.ctx.Done():
		return 0, pw.ctx.Err()
	default:
	}
	n := len(p)
	pw.written += int64(n)
	downloadBytesTotal.Add(float64(n))
	if pw.onProgress != nil {
		pr := Progress{Written: pw.written, Total: pw.total}
		if pw.total > 0 {
			pr.Percent = min(100, float64(pw.written)/float64(pw.total)*100)
		}
		pw.onProgress(pr)
	}
	return n, nil
}

// StatusError is returned for non-retryable HTTP statuses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %q: status %d", e.URL, e.Code)
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

type canceledError struct {
	dest string
	err  error
}

func (e *canceledError) Error() string { return "download of " + e.dest + " canceled" }
func (e *canceledError) Unwrap() error { return e.err }

// IsCanceled reports whether err came from a cancelled transfer.
func IsCanceled(err error) bool {
	var ce *canceledError
	return errors.As(err, &ce)
}
