package handlers

import (
	"strconv"

	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/middleware"
	"itsm-knowledge-base/models"

	"github.com/gin-gonic/gin"
)

const changeReasonHeader = "X-Change-Reason"

// principal fetches the caller or answers 401 and returns false.
func principal(c *gin.Context, h *helper.HTTPHelper) (models.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		h.SendUnauthorizedError(c, "User not found in context")
		return models.Principal{}, false
	}
	return p, true
}

func versionParam(c *gin.Context, h *helper.HTTPHelper, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 1 {
		h.SendBadRequest(c, "Invalid version number")
		return 0, false
	}
	return v, true
}
