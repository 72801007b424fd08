package routes

import (
	"net/http"

	"blogify/internal/handlers"
	"blogify/internal/middleware"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Auth   *handlers.AuthHandler
	Posts  *handlers.PostHandler
	Health *handlers.HealthHandler
	Logs   *handlers.AdminLogsHandler
}

func InitRoutes(
	router *mux.Router,
	h Handlers,
	auth middleware.TokenParser,
	limiter *middleware.IPRateLimiter,
) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	router.Use(middleware.Recoverer)

	router.HandleFunc("/health", h.Health.Health).Methods("GET")
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := router.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(middleware.RateLimit(limiter))
	}

	// --- Публичные маршруты ---
	api.HandleFunc("/signup", h.Auth.Signup).Methods("POST")
	api.HandleFunc("/login", h.Auth.Login).Methods("POST")

	api.HandleFunc("/posts", h.Posts.List).Methods("GET")
	api.HandleFunc("/posts/slug/{slug}", h.Posts.GetBySlug).Methods("GET")
	api.HandleFunc("/posts/{id}", h.Posts.GetByID).Methods("GET")
	api.HandleFunc("/users/{id}/posts", h.Posts.ListByUser).Methods("GET")
	api.HandleFunc("/state/posts", h.Posts.State).Methods("GET")

	// --- Защищённые JWT ---
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.JWTAuth(auth))
	protected.Use(middleware.AdminFastLane)

	protected.HandleFunc("/me", h.Auth.Me).Methods("GET")
	protected.HandleFunc("/posts", h.Posts.Create).Methods("POST")
	protected.HandleFunc("/posts/{id}", h.Posts.Update).Methods(http.MethodPatch)
	protected.HandleFunc("/posts/{id}", h.Posts.Delete).Methods(http.MethodDelete)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.OnlyRole("admin"))
	admin.HandleFunc("/reset", h.Posts.Reset).Methods("POST")
	if h.Logs != nil {
		admin.HandleFunc("/logs", h.Logs.GetLogs).Methods("GET")
		admin.HandleFunc("/logs/days", h.Logs.ListDays).Methods("GET")
	}
}
