package handlers

import (
	"context"

	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/services"

	"github.com/gin-gonic/gin"
)

type LockHandler struct {
	lockService services.LockService
	Helper      *helper.HTTPHelper
}

func NewLockHandler(lockService services.LockService) *LockHandler {
	return &LockHandler{lockService: lockService, Helper: &helper.HTTPHelper{}}
}

func (h *LockHandler) GetLockStatus(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	status, err := h.lockService.Status(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", status)
}

func (h *LockHandler) AcquireLock(c *gin.Context) {
	h.respond(c, h.lockService.Acquire)
}

func (h *LockHandler) RenewLock(c *gin.Context) {
	h.respond(c, h.lockService.Renew)
}

func (h *LockHandler) ReleaseLock(c *gin.Context) {
	h.respond(c, h.lockService.Release)
}

func (h *LockHandler) respond(c *gin.Context, fn func(context.Context, string, models.Principal) (*models.LockResult, error)) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, result.Message, result)
}
