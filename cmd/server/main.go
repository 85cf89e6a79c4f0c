package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saem16/professional-networking-platform-sub001/internal/config"
	"github.com/saem16/professional-networking-platform-sub001/internal/database"
	"github.com/saem16/professional-networking-platform-sub001/internal/events"
	"github.com/saem16/professional-networking-platform-sub001/internal/handlers"
	"github.com/saem16/professional-networking-platform-sub001/internal/middleware"
	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	"github.com/saem16/professional-networking-platform-sub001/internal/routes"
	"github.com/saem16/professional-networking-platform-sub001/internal/services"
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
)

func main() {
	config.LoadConfig()

	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting LinkHub Backend...")

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database.Connect()
	database.InitRedis()

	logger.Info().Msg("Running database migrations...")
	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.MessageRead{},
		&models.MessageReaction{},
		&models.Notification{},
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Broker is optional: a nil publisher keeps messaging fully functional,
	// offline push fan-out just stops flowing downstream.
	publisher := events.Connect(config.AppConfig.RabbitMQURL, []string{config.AppConfig.NotificationsQueue})
	defer publisher.Close()

	// Service wiring. The socket server is created after the room manager
	// exists, so the manager holds the broadcaster interface from the start.
	presence := services.NewPresenceRegistry()
	socketServer := handlers.NewSocketServer()
	defer socketServer.Close()

	rooms := services.NewRoomManager(socketServer, presence)
	users := services.NewUserService(database.DB)
	conversations := services.NewConversationService(database.DB, rooms)
	messages := services.NewMessageService(database.DB, rooms)
	notifications := services.NewNotificationService(database.DB, rooms, publisher, config.AppConfig.NotificationsQueue)
	chat := services.NewDispatcher(conversations, messages, presence, rooms, users, notifications)

	handlers.Init(handlers.Deps{
		Conversations: conversations,
		Messages:      messages,
		Presence:      presence,
		Rooms:         rooms,
		Users:         users,
		Notifications: notifications,
		Chat:          chat,
	})

	r := gin.Default()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	// Exempt the socket endpoint from rate limiting; long polling would trip
	// the general limiter.
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/socket.io/") {
			c.Next()
			return
		}
		middleware.GeneralRateLimit()(c)
	})

	api := r.Group("/api")
	{
		routes.RegisterAuthRoutes(api)
		routes.RegisterUserRoutes(api)
		routes.RegisterChatRoutes(api)
		routes.RegisterNotificationRoutes(api)
		routes.RegisterUploadRoutes(api)
	}

	r.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		redisStatus := "ok"

		sqlDB, err := database.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "error"
		}

		if database.Redis != nil {
			if _, err := database.Redis.Ping(context.Background()).Result(); err != nil {
				redisStatus = "error"
			}
		} else {
			redisStatus = "not configured"
		}

		status := "ok"
		if dbStatus != "ok" || (redisStatus != "ok" && redisStatus != "not configured") {
			status = "degraded"
		}

		c.JSON(200, gin.H{
			"status": status,
			"checks": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
			},
		})
	})

	r.GET("/socket.io/*any", handlers.SocketHandler(socketServer))
	r.POST("/socket.io/*any", handlers.SocketHandler(socketServer))

	port := config.AppConfig.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", port).Str("env", env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
