package handlers

import (
	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	Helper      *helper.HTTPHelper
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService, Helper: &helper.HTTPHelper{}}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	response, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendCreated(c, "Register success", response)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Login success", response)
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), p.ID)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", gin.H{
		"user":        user,
		"permissions": models.PermissionsFor(user.Role),
	})
}

func (h *AuthHandler) UpdateRole(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}
	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	user, err := h.authService.UpdateRole(c.Request.Context(), c.Param("id"), req.Role, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Role updated", user)
}
