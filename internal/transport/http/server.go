package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/store"
)

// NewServer builds the HTTP server with REST and websocket routes.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(st, hub, logger)
	wsHandler := NewWSHandler(hub, authService, cfg, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.GuestLogin)
	api.GET("/me", AuthMiddleware(authService, logger), apiHandlers.Me)
	api.POST("/password", AuthMiddleware(authService, logger), apiHandlers.ChangePassword)

	rooms := api.Group("/rooms", AuthMiddleware(authService, logger))
	rooms.GET("", roomHandlers.ListRooms)
	rooms.POST("", roomHandlers.CreateRoom)
	rooms.GET("/:name", roomHandlers.GetRoom)
	rooms.POST("/:name/unlock", roomHandlers.UnlockRoom)

	router.GET("/ws/chat/:room", wsHandler.ServeChat)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
