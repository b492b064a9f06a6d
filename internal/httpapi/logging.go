package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// Verbosity selects how much of a chat exchange is logged.
type Verbosity int

const (
	Quiet Verbosity = iota
	// ErrorsOnly logs exchanges that ended with an error.
	ErrorsOnly
	// Summary logs the start and end of every exchange.
	Summary
	// Fragments adds one line per streamed fragment.
	Fragments
)

func parseVerbosity(s string) Verbosity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "quiet":
		return Quiet
	case "error", "errors":
		return ErrorsOnly
	case "debug", "fragments", "1":
		return Fragments
	default:
		return Summary
	}
}

// defaultVerbosity comes from KAIROS_HTTP_LOG_LEVEL at startup.
var defaultVerbosity = parseVerbosity(os.Getenv("KAIROS_HTTP_LOG_LEVEL"))

// verbosityFor lets a caller raise or lower logging for one request with
// ?log= or the X-Log-Level header.
func verbosityFor(r *http.Request) Verbosity {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseVerbosity(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseVerbosity(v)
	}
	return defaultVerbosity
}

// chatLog records one chat exchange.
type chatLog struct {
	v     Verbosity
	log   zerolog.Logger
	began time.Time
}

func newChatLog(r *http.Request, completionID string) *chatLog {
	c := zlog.With().Str("route", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		c = c.Str("request_id", rid)
	}
	if completionID != "" {
		c = c.Str("completion_id", completionID)
	}
	return &chatLog{v: verbosityFor(r), log: c.Logger(), began: time.Now()}
}

func (l *chatLog) start(messages int) {
	if l.v >= Summary {
		l.log.Info().Int("messages", messages).Msg("chat started")
	}
}

func (l *chatLog) fragment(text string) {
	if l.v >= Fragments {
		l.log.Info().Str("fragment", text).Msg("chat fragment")
	}
}

func (l *chatLog) finish(status, tokens int, err error) {
	var ev *zerolog.Event
	switch {
	case err != nil && l.v >= ErrorsOnly:
		ev = l.log.Error().Err(err)
	case l.v >= Summary:
		ev = l.log.Info()
	default:
		return
	}
	ev.Int("status", status).Int("tokens", tokens).Dur("elapsed", time.Since(l.began)).Msg("chat finished")
}
