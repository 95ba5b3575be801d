package handlers

import (
	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/services"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService services.CommentService
	Helper         *helper.HTTPHelper
}

func NewCommentHandler(commentService services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService, Helper: &helper.HTTPHelper{}}
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), c.Param("id"), req, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendCreated(c, "Comment created", comment)
}

func (h *CommentHandler) GetComments(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	comments, err := h.commentService.GetComments(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", comments)
}

func (h *CommentHandler) UpdateComment(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	var req models.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	comment, err := h.commentService.UpdateComment(c.Request.Context(), c.Param("id"), req, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Comment updated", comment)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	if err := h.commentService.DeleteComment(c.Request.Context(), c.Param("id"), p); err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Comment deleted", h.Helper.EmptyJsonMap())
}
