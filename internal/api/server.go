package api

import (
	"context"
	"fmt"
	"net/http"
	"reviewq/internal/ports"
	"reviewq/internal/usecase"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Engine  *usecase.Engine
	Payouts ports.PayoutQueue
	// Images is optional; the upload route is only mounted when set.
	Images    ports.ObjectStorage
	JWTSecret string
}

type Server struct {
	router *chi.Mux
}

func NewServer(d Deps) *Server {
	h := &handlers{engine: d.Engine, payouts: d.Payouts, images: d.Images}
	identify := principalHandler(d.JWTSecret)

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.publish)
		if d.Images != nil {
			r.Post("/upload", h.upload)
		}
		r.Get("/{id}", h.getTask)
		r.With(identify).Post("/{id}/assign", h.assignTask)
		r.With(identify).Post("/{id}/submit", h.submitTask)
	})
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/{id}", h.getReview)
		r.With(identify).Post("/{id}/assign", h.assignReview)
		r.With(identify).Post("/{id}/adjudicate", h.adjudicate)
	})
	r.Get("/queues/tasks", h.taskQueue)
	r.Get("/queues/reviews", h.reviewQueue)
	r.Get("/payouts/{id}", h.getPayout)

	return &Server{router: r}
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler,
		contextLogger,
		realIPHandler,
		requestIDHandler,
		loggerHandler(func(r *http.Request) bool { return r.URL.Path == "/" }),
		corsHandler,
	)
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		log.Info().Msg("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	<-done
	log.Info().Msg("Server stopped")
	return nil
}
