package httpapi

import (
	"context"
	"errors"
	"net/http"
)

// shutdownCtx is done once the server is stopping. Generations and event
// streams end with it.
var shutdownCtx = context.Background()

var errShuttingDown = errors.New("server shutting down")

// SetBaseContext installs the context whose cancellation stops in-flight
// generations and event streams. nil restores the default.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx = ctx
}

// generationContext bounds a generation by the client connection, server
// shutdown and the chat timeout. The release func must be called when the
// handler returns.
func generationContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(r.Context())
	stop := context.AfterFunc(shutdownCtx, func() { cancel(errShuttingDown) })
	release := func() {
		stop()
		cancel(nil)
	}
	if chatTimeout <= 0 {
		return ctx, release
	}
	tctx, tcancel := context.WithTimeout(ctx, chatTimeout)
	return tctx, func() {
		tcancel()
		release()
	}
}

// clientGone reports whether nobody is left to read a response: the caller
// disconnected or the server is stopping.
func clientGone(r *http.Request) bool {
	return r.Context().Err() != nil || shutdownCtx.Err() != nil
}
