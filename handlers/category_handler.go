package handlers

import (
	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/services"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categoryService services.CategoryService
	Helper          *helper.HTTPHelper
}

func NewCategoryHandler(categoryService services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, Helper: &helper.HTTPHelper{}}
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), req, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendCreated(c, "Category created", category)
}

func (h *CategoryHandler) GetCategories(c *gin.Context) {
	categories, err := h.categoryService.GetCategories(c.Request.Context())
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", categories)
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	category, err := h.categoryService.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", category)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), c.Param("id"), req, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Category updated", category)
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	if err := h.categoryService.DeleteCategory(c.Request.Context(), c.Param("id"), p); err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Category deleted", h.Helper.EmptyJsonMap())
}

// ReconcileCategories recounts articles per category. Route is gated by
// category:manage.
func (h *CategoryHandler) ReconcileCategories(c *gin.Context) {
	report, err := h.categoryService.Reconcile(c.Request.Context())
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Category counts reconciled", report)
}
