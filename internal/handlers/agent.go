package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flexxlabs/agenthub-backend/internal/services"
	"github.com/flexxlabs/agenthub-backend/internal/types"
)

type AgentHandler struct {
	agentService services.AgentService
}

func NewAgentHandler(agentService services.AgentService) *AgentHandler {
	return &AgentHandler{agentService: agentService}
}

// ownerAgentView adds the webhook secret to the serialized agent. Only the
// owner-facing endpoints use it; the model itself never marshals the secret.
func ownerAgentView(agent *types.Agent) gin.H {
	return gin.H{
		"agent":          agent,
		"webhook_secret": agent.WebhookSecret,
	}
}

func (h *AgentHandler) Create(c *gin.Context) {
	var req struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Model        string `json:"model"`
		Instructions string `json:"instructions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	agent, err := h.agentService.Create(c.Request.Context(), services.AgentInput{
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		Instructions: req.Instructions,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, ownerAgentView(agent))
}

func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.agentService.List(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"agents": agents})
}

func (h *AgentHandler) Get(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	agent, err := h.agentService.Get(c.Request.Context(), agentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, ownerAgentView(agent))
}

func (h *AgentHandler) Update(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Model        string `json:"model"`
		Instructions string `json:"instructions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	agent, err := h.agentService.Update(c.Request.Context(), agentID, services.AgentInput{
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		Instructions: req.Instructions,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, ownerAgentView(agent))
}

func (h *AgentHandler) Delete(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := h.agentService.Delete(c.Request.Context(), agentID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *AgentHandler) DeleteRemoteAssistant(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := h.agentService.DeleteRemoteAssistant(c.Request.Context(), agentID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *AgentHandler) PublicView(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	view, err := h.agentService.PublicView(c.Request.Context(), agentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}
