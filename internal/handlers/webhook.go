package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/services"
	"github.com/flexxlabs/agenthub-backend/internal/webhooklog"
)

type WebhookHandler struct {
	webhookService services.WebhookService
	ring           *webhooklog.Ring
}

func NewWebhookHandler(webhookService services.WebhookService, ring *webhooklog.Ring) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, ring: ring}
}

// Handle is the lead-system entry point. The contract differs from the rest
// of the API: errors are `{error, details?}` flat objects because that is
// what the lead platforms expect to parse.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var payload services.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body", "details": err.Error()})
		return
	}
	result, err := h.webhookService.Handle(c.Request.Context(), c.Param("secret"), payload)
	if err != nil {
		ae := apierr.From(err)
		body := gin.H{"error": ae.Code}
		if ae.Err != nil {
			body["details"] = ae.Err.Error()
		}
		c.JSON(ae.Status, body)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Receipts serves the diagnostics page: most recent webhook receipts first.
func (h *WebhookHandler) Receipts(c *gin.Context) {
	RespondOK(c, gin.H{"webhooks": h.ring.Snapshot()})
}

func (h *WebhookHandler) ClearReceipts(c *gin.Context) {
	h.ring.Clear()
	RespondOK(c, gin.H{"success": true})
}
