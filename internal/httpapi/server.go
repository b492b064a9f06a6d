// Package httpapi serves the loopback HTTP API: health, model listing,
// blocking and streaming chat, status, lifecycle events and metrics.
package httpapi

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kairos/internal/chat"
	"kairos/internal/events"
	"kairos/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	ActiveModel() string
	Models() []types.Model
	Status() types.StatusResponse
	Generate(ctx context.Context, msgs []chat.Message) (string, chat.Stats, error)
	Stream(ctx context.Context, msgs []chat.Message, onToken func(string) bool) (chat.Stats, error)
	Subscribe() (<-chan events.Event, func())
}

// NewMux builds the router.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", homeHandler(svc))
	r.Get("/health", healthHandler(svc))
	r.Get("/models", modelsHandler(svc))
	r.Get("/status", statusHandler(svc))
	r.Post("/chat", chatHandler(svc))
	r.Post("/chat/stream", chatStreamHandler(svc))
	r.Get("/events", eventsHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no model loaded"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Endpoint not found")
	})
	return r
}

// healthHandler godoc
// @Summary      Health
// @Description  Reports liveness and the active model ("none" when nothing is loaded).
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /health [get]
func healthHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := svc.ActiveModel()
		if model == "" {
			model = "none"
		}
		writeJSON(w, types.HealthResponse{Status: "ok", Model: model, Version: version})
	}
}

// modelsHandler godoc
// @Summary      List models
// @Description  Lists downloaded models in the OpenAI list shape.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Unix()
		resp := types.ModelsResponse{Object: "list", Data: []types.ModelInfo{}}
		for _, m := range svc.Models() {
			if !m.Downloaded {
				continue
			}
			resp.Data = append(resp.Data, types.ModelInfo{ID: m.Name, Object: "model", Created: now, OwnedBy: "kairos-local"})
		}
		writeJSON(w, resp)
	}
}

// statusHandler godoc
// @Summary      Status
// @Description  Session state, catalog, hardware and last generation statistics.
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	}
}

func homeHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := svc.ActiveModel()
		if model == "" {
			model = "No model loaded"
		}
		n := 0
		for _, m := range svc.Models() {
			if m.Downloaded {
				n++
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><title>KaiROS - Local API</title></head>
<body>
<h1>KaiROS Local API</h1>
<p><strong>Active model:</strong> <code>%s</code><br><strong>Available models:</strong> %d</p>
<ul>
<li>GET /health</li>
<li>GET /models</li>
<li>POST /chat</li>
<li>POST /chat/stream (SSE)</li>
<li>GET /status</li>
<li>GET /events (SSE)</li>
</ul>
</body></html>
`, html.EscapeString(model), n)
	}
}
