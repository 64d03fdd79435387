package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flexxlabs/agenthub-backend/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Start(c *gin.Context) {
	var req struct {
		AgentID uuid.UUID `json:"agent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	chat, err := h.chatService.StartChat(c.Request.Context(), req.AgentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, chat)
}

func (h *ChatHandler) StartPublic(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	chat, err := h.chatService.StartPublicChat(c.Request.Context(), agentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, chat)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	reply, err := h.chatService.SendMessage(c.Request.Context(), chatID, req.Text)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"reply": reply})
}

func (h *ChatHandler) SendPublicMessage(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	reply, err := h.chatService.SendPublicMessage(c.Request.Context(), chatID, req.Text)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"reply": reply})
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chatService.ListChats(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"chats": chats})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	msgs, err := h.chatService.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": msgs})
}

func (h *ChatHandler) ListPublicMessages(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	msgs, err := h.chatService.ListPublicMessages(c.Request.Context(), chatID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": msgs})
}

func (h *ChatHandler) Stage(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	stage, err := h.chatService.Stage(c.Request.Context(), chatID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"stage": stage})
}
