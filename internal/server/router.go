package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/flexxlabs/agenthub-backend/internal/handlers"
	"github.com/flexxlabs/agenthub-backend/internal/middleware"
	"github.com/flexxlabs/agenthub-backend/internal/utils"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	UserHandler     *handlers.UserHandler
	AgentHandler    *handlers.AgentHandler
	ChatHandler     *handlers.ChatHandler
	FeedbackHandler *handlers.FeedbackHandler
	WebhookHandler  *handlers.WebhookHandler
	SSEHandler      *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", nil), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Refresh-Token"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")

	// Public: auth bootstrap, the share-link surface and the lead webhook.
	api.POST("/register", cfg.AuthHandler.Register)
	api.POST("/login", cfg.AuthHandler.Login)
	api.POST("/refresh", cfg.AuthMiddleware.WithRefreshToken(), cfg.AuthHandler.Refresh)

	api.GET("/public/agents/:id", cfg.AgentHandler.PublicView)
	api.POST("/public/agents/:id/chats", cfg.ChatHandler.StartPublic)
	api.POST("/public/agents/:id/feedback", cfg.FeedbackHandler.Add)
	api.POST("/public/chats/:id/messages", cfg.ChatHandler.SendPublicMessage)
	api.GET("/public/chats/:id/messages", cfg.ChatHandler.ListPublicMessages)

	api.POST("/webhook/:secret", cfg.WebhookHandler.Handle)

	// Protected: everything the operator dashboard calls.
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	protected.POST("/logout", cfg.AuthHandler.Logout)

	protected.GET("/user", cfg.UserHandler.GetMe)
	protected.PATCH("/user", cfg.UserHandler.UpdateProfile)
	protected.PUT("/user/openai-key", cfg.UserHandler.SetOpenAIKey)
	protected.PUT("/user/logo", cfg.UserHandler.SetLogo)

	protected.POST("/agents", cfg.AgentHandler.Create)
	protected.GET("/agents", cfg.AgentHandler.List)
	protected.GET("/agents/:id", cfg.AgentHandler.Get)
	protected.PATCH("/agents/:id", cfg.AgentHandler.Update)
	protected.DELETE("/agents/:id", cfg.AgentHandler.Delete)
	protected.DELETE("/agents/:id/assistant", cfg.AgentHandler.DeleteRemoteAssistant)
	protected.GET("/agents/:id/feedback", cfg.FeedbackHandler.ListByAgent)

	protected.POST("/chats", cfg.ChatHandler.Start)
	protected.GET("/chats", cfg.ChatHandler.List)
	protected.POST("/chats/:id/messages", cfg.ChatHandler.SendMessage)
	protected.GET("/chats/:id/messages", cfg.ChatHandler.ListMessages)
	protected.GET("/chats/:id/stage", cfg.ChatHandler.Stage)
	protected.GET("/chats/:id/feedback", cfg.FeedbackHandler.ListByChat)

	protected.GET("/webhooks", cfg.WebhookHandler.Receipts)
	protected.DELETE("/webhooks", cfg.WebhookHandler.ClearReceipts)

	protected.GET("/events", cfg.SSEHandler.Events)

	return router
}
