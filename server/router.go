package server

import (
	"net/http"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/realtime"
	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the router-level settings read from configuration.
type Options struct {
	SecretKey          string
	AllowedOrigins     []string
	RateLimitPerMinute float64
	RateLimitBurst     int
}

func InitiateRouter(
	options Options,
	connectionHandler httpHandler.IConnectionHandler,
	postHandler httpHandler.IPostHandler,
	videoHandler httpHandler.IVideoHandler,
	accountHandler httpHandler.IAccountHandler,
	healthHandler httpHandler.IHealthHandler,
	postHub *realtime.PostHub,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     options.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/readyz", healthHandler.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(options.SecretKey)
	limiter := middleware.NewRateLimiter(options.RateLimitPerMinute, options.RateLimitBurst, middleware.KeyByUserOrIP()).Handler()

	api := router.Group("/api")

	// The vendor redirects the browser here; the session may only be in a cookie.
	callback := api.Group("", middleware.OptionalAuth(options.SecretKey))
	for _, platform := range model.Platforms() {
		callback.GET("/"+string(platform)+"/callback", connectionHandler.Callback(platform))
	}

	authed := api.Group("", auth)
	for _, platform := range model.Platforms() {
		authed.GET("/"+string(platform)+"/connect", connectionHandler.Connect(platform))
		authed.POST("/"+string(platform)+"/disconnect", connectionHandler.Disconnect(platform))
	}
	authed.GET("/connections", connectionHandler.List)

	authed.POST("/posts/create", limiter, postHandler.Create)
	authed.GET("/posts", postHandler.List)
	authed.GET("/posts/stream", postHub.Serve)

	authed.POST("/videos/upload", limiter, videoHandler.Upload)
	authed.GET("/videos", videoHandler.List)
	authed.GET("/videos/:id", videoHandler.Get)
	authed.DELETE("/videos/:id", videoHandler.Delete)

	authed.GET("/account/delete", accountHandler.Summary)
	authed.POST("/account/delete", accountHandler.Delete)

	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
