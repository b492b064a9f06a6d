package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kairos/internal/service"
)

func TestParseVerbosity(t *testing.T) {
	cases := map[string]Verbosity{
		"":          Quiet,
		"off":       Quiet,
		"error":     ErrorsOnly,
		"info":      Summary,
		"DEBUG":     Fragments,
		"fragments": Fragments,
		"weird":     Summary,
	}
	for in, want := range cases {
		if got := parseVerbosity(in); got != want {
			t.Fatalf("parseVerbosity(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestVerbosityFor_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/chat?log=1", nil)
	if got := verbosityFor(r); got != Fragments {
		t.Fatalf("?log=1 => %v", got)
	}
	r = httptest.NewRequest("GET", "/chat", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := verbosityFor(r); got != ErrorsOnly {
		t.Fatalf("header => %v", got)
	}
}

func TestChatLog_WritesPerVerbosity(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer SetLogger(zerolog.Nop())

	r := httptest.NewRequest("POST", "/chat/stream?log=errors", nil)
	cl := newChatLog(r, "c-1")
	cl.start(2)
	cl.fragment("hi")
	cl.finish(200, 1, nil)
	if buf.Len() != 0 {
		t.Fatalf("errors-only logged a clean exchange: %s", buf.String())
	}
	cl.finish(200, 1, errors.New("kv cache full"))
	if !bytes.Contains(buf.Bytes(), []byte(`"completion_id":"c-1"`)) || !bytes.Contains(buf.Bytes(), []byte("kv cache full")) {
		t.Fatalf("log=%s", buf.String())
	}

	buf.Reset()
	cl = newChatLog(httptest.NewRequest("POST", "/chat?log=debug", nil), "")
	cl.start(1)
	cl.fragment("tok")
	cl.finish(200, 1, nil)
	for _, msg := range []string{"chat started", "chat fragment", "chat finished"} {
		if !bytes.Contains(buf.Bytes(), []byte(msg)) {
			t.Fatalf("missing %q in %s", msg, buf.String())
		}
	}
}

func TestGenerationContext_EndsOnShutdownOrClient(t *testing.T) {
	defer SetBaseContext(nil)
	for _, byShutdown := range []bool{true, false} {
		base, stop := context.WithCancel(context.Background())
		SetBaseContext(base)
		reqCtx, disconnect := context.WithCancel(context.Background())
		r := httptest.NewRequest("POST", "/chat", nil).WithContext(reqCtx)
		ctx, release := generationContext(r)
		if byShutdown {
			stop()
		} else {
			disconnect()
		}
		select {
		case <-ctx.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("generation context still live (shutdown=%v)", byShutdown)
		}
		if !clientGone(r) {
			t.Fatal("clientGone=false")
		}
		if byShutdown && !errors.Is(context.Cause(ctx), errShuttingDown) {
			t.Fatalf("cause=%v", context.Cause(ctx))
		}
		release()
		stop()
		disconnect()
	}
}

func TestGenerationContext_Timeout(t *testing.T) {
	SetChatTimeout(10 * time.Millisecond)
	defer SetChatTimeout(0)
	ctx, release := generationContext(httptest.NewRequest("POST", "/chat", nil))
	defer release()
	<-ctx.Done()
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("err=%v", ctx.Err())
	}
}

func TestSetters(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("max body=%d", maxBodyBytes)
	}
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("max body=%d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)

	SetChatTimeout(-time.Second)
	if chatTimeout != 0 {
		t.Fatalf("timeout=%v", chatTimeout)
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/models/{name}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/models/abc", nil))

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := mrr.Body.Bytes()
	if !bytes.Contains(body, []byte("kairos_http_requests_total")) || !bytes.Contains(body, []byte(`route="/models/{name}"`)) {
		t.Fatalf("metrics missing route pattern")
	}
}

func TestMountSwagger_NoOp(t *testing.T) {
	MountSwagger(chi.NewRouter())
}

func TestChatOutcomes_CountsBusy(t *testing.T) {
	do(t, &mockService{ready: true, err: service.ErrTooBusy()}, http.MethodPost, "/chat", helloBody)

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !bytes.Contains(mrr.Body.Bytes(), []byte(`kairos_http_chat_outcomes_total{outcome="busy",route="/chat"}`)) {
		t.Fatalf("busy outcome not counted")
	}
}

func TestOutcomeFor(t *testing.T) {
	cases := map[int]string{200: "ok", 429: "busy", 503: "no_model", 504: "timeout", 500: "error"}
	for code, want := range cases {
		if got := outcomeFor(code); got != want {
			t.Fatalf("outcomeFor(%d)=%s", code, got)
		}
	}
}
