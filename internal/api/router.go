package api

import (
	"github.com/Ayash-Bera/shopassist/backend/internal/api/handlers"
	"github.com/Ayash-Bera/shopassist/backend/internal/metrics"
	"github.com/Ayash-Bera/shopassist/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterDeps holds everything the HTTP layer serves. RateLimiter and
// Metrics may be nil.
type RouterDeps struct {
	Chat        *handlers.ChatHandler
	Queries     *handlers.QueryHandler
	Health      *handlers.HealthHandler
	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Recorder
	Logger      *logrus.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", deps.Health.HandleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	chat := []gin.HandlerFunc{deps.Chat.HandleChat}
	if deps.RateLimiter != nil {
		chat = append([]gin.HandlerFunc{deps.RateLimiter.RateLimit()}, chat...)
	}
	router.POST("/", chat...)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat", chat...)
		v1.GET("/queries/popular", deps.Queries.HandlePopularQueries)
	}

	return router
}
