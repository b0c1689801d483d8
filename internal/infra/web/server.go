package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"delta-backend/internal/infra/redis"
	"delta-backend/internal/usecase"
)

// TTSSynthesizer turns text into base64-encoded audio.
type TTSSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// ImageGenerator renders a prompt into an inline data URI.
type ImageGenerator interface {
	GenerateDataURI(ctx context.Context, prompt string) (string, error)
}

type Server struct {
	userUC  usecase.UserUseCase
	chatUC  usecase.ChatUseCase
	jobUC   usecase.JobUseCase
	tts     TTSSynthesizer // optional
	image   ImageGenerator // optional
	auth    *AuthManager
	limiter *redis.RateLimiter // optional
	log     *zerolog.Logger
}

func NewServer(
	userUC usecase.UserUseCase,
	chatUC usecase.ChatUseCase,
	jobUC usecase.JobUseCase,
	auth *AuthManager,
	tts TTSSynthesizer,
	image ImageGenerator,
	limiter *redis.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		userUC:  userUC,
		chatUC:  chatUC,
		jobUC:   jobUC,
		auth:    auth,
		tts:     tts,
		image:   image,
		limiter: limiter,
		log:     &l,
	}
}

// Router assembles the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/register", s.handleRegister)
		r.Post("/users/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			if s.limiter != nil {
				r.Use(s.rateLimit)
			}

			r.Post("/conversations", s.handleCreateConversation)
			r.Get("/conversations", s.handleListConversations)
			r.Get("/conversations/{conversationID}/messages", s.handleListMessages)

			r.Post("/chat/process", s.handleProcess)
			r.Post("/chat/process_stream", s.handleProcessStream)
			r.Get("/chat/summary/{conversationID}", s.handleSummary)

			r.Post("/jobs", s.handleCreateJob)
			r.Get("/jobs/pending", s.handleListPendingJobs)
			r.Get("/jobs/{jobID}", s.handleGetJob)
			r.Post("/jobs/{jobID}/cancel", s.handleCancelJob)

			r.Post("/media/tts", s.handleTTS)
			r.Post("/media/generate_image", s.handleGenerateImage)
		})
	})
	return r
}

const (
	rateLimitPerMinute = 60
	rateLimitWindow    = time.Minute
)

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := redis.UserEndpointKey(userIDFrom(r.Context()), r.URL.Path)
		ok, err := s.limiter.Allow(r.Context(), key, rateLimitPerMinute, rateLimitWindow)
		if err != nil {
			// Limiter failures never block traffic.
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
