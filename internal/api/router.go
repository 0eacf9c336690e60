package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"treechat-backend/internal/config"
	"treechat-backend/internal/handlers"
)

// RouterDependencies holds the handlers and configuration the router needs.
type RouterDependencies struct {
	ChatHandler      *handlers.ChatHandlers
	DiscoveryHandler *handlers.DiscoveryHandlers
	Config           *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// A prompt can legitimately wait out a long background task, so the
	// request timeout sits above the task poll deadline.
	r.Use(middleware.Timeout(deps.Config.TaskPollDeadline + time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		r.Route("/chat", func(r chi.Router) {
			r.Get("/state", deps.ChatHandler.HandleGetState)
			r.Get("/sidebar", deps.ChatHandler.HandleGetSidebar)
			r.Post("/prompt", deps.ChatHandler.HandleSendPrompt)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/select", deps.ChatHandler.HandleSelectConversation)
				r.Post("/new", deps.ChatHandler.HandleNewConversation)
				r.Post("/refresh", deps.ChatHandler.HandleRefreshConversations)
				r.Delete("/{conversationID}", deps.ChatHandler.HandleDeleteConversation)
			})
		})

		r.Route("/discoveries", func(r chi.Router) {
			r.Get("/", deps.DiscoveryHandler.HandleListDiscoveries)
			r.Post("/share", deps.DiscoveryHandler.HandleShareDiscovery)
			r.Post("/{discoveryID}/dismiss", deps.DiscoveryHandler.HandleDismissDiscovery)
		})
	})

	return r
}
