package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweepd/service"
)

// NewServer wires routes and returns an http.Handler.
func NewServer(svc *service.Service, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	h := &handlers{svc: svc, log: log}
	r.Get("/health", h.health)
	r.Route("/games", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.view)
			r.Post("/moves", h.move)
			r.Post("/pause", h.pause)
			r.Post("/resume", h.resume)
			r.Get("/hint", h.hint)
			r.Post("/autoplay", h.autoplay)
		})
	})
	return r
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"requestId": middleware.GetReqID(r.Context()),
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    ww.Status(),
				"bytes":     ww.BytesWritten(),
				"duration":  time.Since(start),
			}).Debug("handled request")
		})
	}
}
