package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flexxlabs/agenthub-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	profile, err := uh.userService.GetMe(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, profile)
}

func (uh *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		CompanyName string `json:"company_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	profile, err := uh.userService.UpdateProfile(c.Request.Context(), req.Name, req.CompanyName)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, profile)
}

func (uh *UserHandler) SetOpenAIKey(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	profile, err := uh.userService.SetOpenAIKey(c.Request.Context(), req.APIKey)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, profile)
}

func (uh *UserHandler) SetLogo(c *gin.Context) {
	var req struct {
		LogoURL string `json:"logo_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	profile, err := uh.userService.SetLogo(c.Request.Context(), req.LogoURL)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, profile)
}
