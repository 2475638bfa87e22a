package app

import (
	"context"
	"net/http"

	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/health"
	"github.com/MrWong99/meetnav/internal/observe"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) buildHandler() http.Handler {
	checks := []health.Checker{
		health.Attached("capture", a.mon.Attached),
		health.Configured("llm", a.providers.LLM != nil, "no LLM provider configured"),
	}
	if p, ok := a.sessions.(pinger); ok {
		checks = append(checks, health.Ping("memory", p.Ping))
	}

	api := http.NewServeMux()
	health.New(checks...).Register(api)
	api.Handle("GET /metrics", observe.MetricsHandler())
	api.HandleFunc("GET /transcript", a.serveTranscript)

	root := http.NewServeMux()
	// The upgrade needs the raw connection, which the middleware's
	// status recorder hides.
	root.Handle("GET /ws/transcript", a.hub)
	root.Handle("/", observe.Middleware(a.metrics)(api))
	return root
}

func (a *App) serveTranscript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if id := a.SessionID(); id != "" {
		w.Header().Set("X-Session-ID", id)
	}
	_, _ = w.Write([]byte(capture.FormatTranscript(a.Entries())))
}
