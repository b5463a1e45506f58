package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log           *logrus.Logger
	Status        StatusProvider
	Seats         SeatService
	Notifications NotificationService
	Queue         QueueService
	Rooms         RoomService
	Connection    ConnectionService
	Events        EventSource   // optional; enables /events
	Store         HealthChecker // optional
	CORSOrigins   []string
	Version       string
	LocalAPIToken string
}

// Router-level limits.
const maxBodySize = 1 << 20 // 1 MB

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware("/metrics", "/api/v1/events"))

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Status, deps.Store, log, deps.Version)
	seats := NewSeatHandler(deps.Seats, log)
	notes := NewNotificationHandler(deps.Notifications, log)
	queue := NewQueueHandler(deps.Queue, log)
	rooms := NewRoomHandler(deps.Rooms, log)
	conn := NewConnectionHandler(deps.Connection, log)

	// Health is unauthenticated.
	api.GET("/health", health.Liveness)

	api.Use(middleware.LocalToken(deps.LocalAPIToken, log))

	api.GET("/status", health.Status)

	// Push connection and credential.
	api.POST("/connection", conn.Connect)
	api.DELETE("/connection", conn.Disconnect)
	api.PUT("/token", conn.UpdateToken)

	// Seats.
	api.GET("/seats/:showtime", seats.List)
	api.POST("/seats/:showtime/:seat/lock", seats.Lock)
	api.DELETE("/seats/:showtime/:seat/lock", seats.Release)

	// Notifications and banners.
	api.GET("/notifications", notes.List)
	api.DELETE("/notifications", notes.Clear)
	api.DELETE("/notifications/:id", notes.Remove)
	api.GET("/banners", notes.Banners)
	api.DELETE("/banners/:id", notes.DismissBanner)
	api.GET("/preferences", notes.GetPreferences)
	api.PUT("/preferences", notes.PutPreferences)

	// Offline queue.
	api.GET("/queue", queue.List)
	api.POST("/queue", queue.Enqueue)
	api.POST("/queue/sync", queue.Sync)
	api.DELETE("/queue", queue.Clear)
	api.DELETE("/queue/:id", queue.Remove)

	// Rooms.
	api.GET("/rooms", rooms.List)
	api.POST("/rooms/:id", rooms.Join)
	api.DELETE("/rooms/:id", rooms.Leave)

	// Live event stream.
	if deps.Events != nil {
		api.GET("/events", streamHandler(ctx, log, deps.Events, deps.CORSOrigins))
	}
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
