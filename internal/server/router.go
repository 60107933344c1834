package server

import (
	"net/http"
	"time"

	"task-manager/api/internal/handlers"
	"task-manager/api/internal/middleware"
	"task-manager/api/internal/monitoring"
	"task-manager/api/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps is everything the route table needs. Counter may be nil, in which case
// rate limiting stays in-process.
type Deps struct {
	APIPrefix            string
	CORSOrigins          []string
	CORSAllowCredentials bool
	Cookie               handlers.RefreshCookie

	Auth      services.AuthService
	Register  services.RegisterService
	Tasks     services.TaskService
	Tokens    middleware.TokenVerifier
	Suggester handlers.Suggester
	Database  handlers.DatabaseProbe
	Health    *monitoring.HealthChecker

	RateLimitEnabled bool
	AuthLimit        int
	AuthWindow       time.Duration
	Counter          middleware.WindowCounter
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.RecoveryWithLog())
	r.Use(middleware.AccessLog())
	r.Use(monitoring.MetricsMiddleware())
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(corsConfig(d.CORSOrigins, d.CORSAllowCredentials)))
	}

	r.NoRoute(handlers.NotFound)
	r.NoMethod(handlers.MethodNotAllowed)

	r.GET("/metrics", monitoring.MetricsHandler())
	if d.Health != nil {
		r.GET("/ready", d.Health.ReadinessHandler())
	}

	api := r.Group(d.APIPrefix)

	if d.Health != nil {
		api.GET("/health", d.Health.LivenessHandler())
	}
	api.GET("/mongo-health", handlers.NewHealthHandler(d.Database).MongoHealth)

	// Only credential checks are limited; refresh and logout stay available.
	credentials := api.Group("/auth")
	if d.RateLimitEnabled {
		credentials.Use(middleware.NewRateLimiter("auth", d.AuthLimit, d.AuthWindow, d.Counter).Middleware())
	}
	{
		credentials.POST("/signup", handlers.NewRegisterHandler(d.Register).Signup)
		credentials.POST("/login", handlers.NewAuthHandler(d.Auth, d.Cookie).Login)
	}

	auth := api.Group("/auth")
	{
		auth.POST("/refresh", handlers.NewRefreshHandler(d.Auth).Refresh)
		auth.POST("/logout", handlers.NewLogoutHandler(d.Cookie).Logout)
	}

	protected := api.Group("")
	protected.Use(middleware.RequireAccessToken(d.Tokens))
	{
		taskHandler := handlers.NewTaskHandler(d.Tasks)
		protected.POST("/tasks", taskHandler.CreateTask)
		protected.GET("/tasks", taskHandler.GetTasks)
		protected.GET("/tasks/:id", taskHandler.GetTaskByID)
		protected.PATCH("/tasks/:id", taskHandler.UpdateTask)
		protected.DELETE("/tasks/:id", taskHandler.DeleteTask)

		protected.POST("/ai/suggest-due-date", handlers.NewAIHandler(d.Suggester).SuggestDueDate)
	}

	return r
}

func corsConfig(origins []string, allowCredentials bool) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}
}
