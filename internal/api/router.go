/**
 * @description
 * HTTP router setup for the banking core using go-chi/chi. Customer routes serve the mobile
 * client, the admin group serves the dashboard and is guarded by a shared API key.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The routing library and its standard middleware.
 * - github.com/go-chi/cors: CORS handling for the mobile and web clients.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions carries what the router needs besides the handler.
type RouterOptions struct {
	AdminAPIKey    string
	AllowedOrigins []string
	Metrics        http.Handler
	Logger         *zap.Logger
}

// NewRouter creates a new Chi router and registers every route.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", AdminAPIKeyHeader},
		ExposedHeaders: []string{"Link", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Get("/clients/{userId}", h.handleGetClient)
		r.Get("/accounts/{userId}", h.handleGetAccount)
		r.Get("/users/{userId}/transfers", h.handleListTransfers)
		r.Post("/destinations/resolve", h.handleResolveDestination)
		r.Post("/transfer", h.handleTransfer)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(opts.AdminAPIKey))
			r.Get("/users", h.handleListUsers)
			r.Get("/accounts", h.handleListAccounts)
			r.Put("/users/{userId}/unblock", h.handleUnblockUser)
			r.Put("/accounts/{accountId}/unfreeze", h.handleUnfreezeAccount)
		})
	})

	return r
}
