package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quiz-leaderboard-service/internal/app"
)

// NewRouter wires the REST API, the websocket stream, health and metrics.
// gatherer may be nil to disable /metrics.
func NewRouter(service *app.LeaderboardService, logger *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	api := NewAPIHandler(service, logger)
	ws := NewWSHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/ws/leaderboard", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", api.GetLeaderboard)
		r.Get("/leaderboard/rank/{userID}", api.GetUserRank)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Put("/profile", api.PutProfile)
			r.Get("/history", api.GetHistory)
			r.Post("/history", api.PostAttempt)
			r.Delete("/history", api.ClearHistory)
			r.Delete("/history/{attemptID}", api.DeleteAttempt)
		})
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
