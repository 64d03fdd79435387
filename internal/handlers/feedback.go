package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flexxlabs/agenthub-backend/internal/services"
)

type FeedbackHandler struct {
	feedbackService services.FeedbackService
}

func NewFeedbackHandler(feedbackService services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Add serves the public share page: scoped by agent id, no session.
func (h *FeedbackHandler) Add(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req struct {
		ChatID  uuid.UUID `json:"chat_id"`
		Comment string    `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	fb, err := h.feedbackService.Add(c.Request.Context(), agentID, req.ChatID, req.Comment)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, fb)
}

func (h *FeedbackHandler) ListByChat(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	items, err := h.feedbackService.ListByChat(c.Request.Context(), chatID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"feedback": items})
}

func (h *FeedbackHandler) ListByAgent(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	items, err := h.feedbackService.ListByAgent(c.Request.Context(), agentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"feedback": items})
}
