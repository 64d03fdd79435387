package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/flexxlabs/agenthub-backend/internal/clients/openai"
	"github.com/flexxlabs/agenthub-backend/internal/clients/redis"
	"github.com/flexxlabs/agenthub-backend/internal/db"
	"github.com/flexxlabs/agenthub-backend/internal/handlers"
	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/middleware"
	"github.com/flexxlabs/agenthub-backend/internal/repos"
	"github.com/flexxlabs/agenthub-backend/internal/server"
	"github.com/flexxlabs/agenthub-backend/internal/services"
	"github.com/flexxlabs/agenthub-backend/internal/sse"
	"github.com/flexxlabs/agenthub-backend/internal/utils"
	"github.com/flexxlabs/agenthub-backend/internal/webhooklog"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "", log)
	if jwtSecretKey == "" {
		log.Error("JWT_SECRET_KEY is required")
		os.Exit(1)
	}
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	gdb := postgresService.DB()

	// Repos
	userRepo := repos.NewUserRepo(gdb, log)
	userTokenRepo := repos.NewUserTokenRepo(gdb, log)
	agentRepo := repos.NewAgentRepo(gdb, log)
	chatRepo := repos.NewChatRepo(gdb, log)
	messageRepo := repos.NewMessageRepo(gdb, log)
	feedbackRepo := repos.NewFeedbackRepo(gdb, log)

	// Assistant bridge
	openaiFactory := openai.NewFactory(log)

	// Notifications: local SSE hub, fanned out across instances over Redis
	// when REDIS_ADDR is set.
	sseHub := sse.NewHub(log)
	var bus redis.EventBus
	if utils.GetEnv("REDIS_ADDR", "", log) != "" {
		bus, err = redis.NewEventBus(log)
		if err != nil {
			log.Warn("Redis event bus unavailable; notifications stay instance-local", "error", err)
			bus = nil
		}
	}
	notifier := services.NewNotifier(log, sseHub, bus)
	if bus != nil {
		if err := notifier.StartBusForwarder(context.Background()); err != nil {
			log.Warn("Failed to start event bus forwarder", "error", err)
		}
	}

	webhookRing := webhooklog.NewRing(webhooklog.DefaultCapacity)

	// Services
	authService := services.NewAuthService(gdb, log, userRepo, userTokenRepo,
		jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second,
		time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(gdb, log, userRepo)
	agentService := services.NewAgentService(gdb, log, userRepo, agentRepo, openaiFactory)
	chatService := services.NewChatService(gdb, log, userRepo, agentRepo, chatRepo, messageRepo, openaiFactory, notifier)
	feedbackService := services.NewFeedbackService(gdb, log, agentRepo, chatRepo, feedbackRepo)
	webhookService := services.NewWebhookService(gdb, log, userRepo, agentRepo, chatRepo, messageRepo, openaiFactory, webhookRing, notifier)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	agentHandler := handlers.NewAgentHandler(agentService)
	chatHandler := handlers.NewChatHandler(chatService)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)
	webhookHandler := handlers.NewWebhookHandler(webhookService, webhookRing)
	sseHandler := handlers.NewSSEHandler(sseHub)

	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		UserHandler:     userHandler,
		AgentHandler:    agentHandler,
		ChatHandler:     chatHandler,
		FeedbackHandler: feedbackHandler,
		WebhookHandler:  webhookHandler,
		SSEHandler:      sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
