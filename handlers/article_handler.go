package handlers

import (
	"context"
	"net/http"
	"strconv"

	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/services"

	"github.com/gin-gonic/gin"
)

type ArticleHandler struct {
	articleService services.ArticleService
	versionService services.VersionService
	Helper         *helper.HTTPHelper
}

func NewArticleHandler(articleService services.ArticleService, versionService services.VersionService) *ArticleHandler {
	return &ArticleHandler{
		articleService: articleService,
		versionService: versionService,
		Helper:         &helper.HTTPHelper{},
	}
}

func (h *ArticleHandler) CreateArticle(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	var req models.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	article, err := h.articleService.CreateArticle(c.Request.Context(), req, p, c.GetHeader(changeReasonHeader))
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendCreated(c, "Article created", article)
}

func (h *ArticleHandler) GetArticles(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	var params models.ArticleListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, "Invalid query: "+err.Error())
		return
	}

	page, err := h.articleService.GetArticles(c.Request.Context(), params, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccessWithPaging(c, "Success", page.Articles, page.Page, page.Limit, page.Total)
}

func (h *ArticleHandler) GetArticle(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	article, err := h.articleService.GetArticle(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", article)
}

func (h *ArticleHandler) UpdateArticle(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	var req models.UpdateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBindError(c, err)
		return
	}

	article, err := h.articleService.UpdateArticle(c.Request.Context(), c.Param("id"), req, p, c.GetHeader(changeReasonHeader))
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Article updated", article)
}

func (h *ArticleHandler) PublishArticle(c *gin.Context) {
	h.transition(c, "Article published", h.articleService.PublishArticle)
}

func (h *ArticleHandler) ArchiveArticle(c *gin.Context) {
	h.transition(c, "Article archived", h.articleService.ArchiveArticle)
}

func (h *ArticleHandler) DeleteArticle(c *gin.Context) {
	h.transition(c, "Article moved to trash", h.articleService.DeleteArticle)
}

func (h *ArticleHandler) RestoreArticle(c *gin.Context) {
	h.transition(c, "Article restored", h.articleService.RestoreArticle)
}

type transitionFunc func(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error)

func (h *ArticleHandler) transition(c *gin.Context, message string, fn transitionFunc) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	article, err := fn(c.Request.Context(), c.Param("id"), p, c.GetHeader(changeReasonHeader))
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, message, article)
}

func (h *ArticleHandler) PermanentDeleteArticle(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	if err := h.articleService.PermanentDeleteArticle(c.Request.Context(), c.Param("id"), p); err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Article permanently deleted", h.Helper.EmptyJsonMap())
}

func (h *ArticleHandler) GetArticleVersions(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	versions, err := h.versionService.List(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", versions)
}

func (h *ArticleHandler) GetArticleVersion(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}
	number, ok := versionParam(c, h.Helper, "version")
	if !ok {
		return
	}

	version, err := h.versionService.Get(c.Request.Context(), c.Param("id"), number, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", version)
}

func (h *ArticleHandler) CompareVersions(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}

	v1, err1 := strconv.Atoi(c.Query("v1"))
	v2, err2 := strconv.Atoi(c.Query("v2"))
	if err1 != nil || err2 != nil || v1 < 1 || v2 < 1 {
		h.Helper.SendBadRequest(c, "v1 and v2 must be positive version numbers")
		return
	}

	comparison, err := h.versionService.Compare(c.Request.Context(), c.Param("id"), v1, v2, p)
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", comparison)
}

func (h *ArticleHandler) RestoreVersion(c *gin.Context) {
	p, ok := principal(c, h.Helper)
	if !ok {
		return
	}
	number, ok := versionParam(c, h.Helper, "version")
	if !ok {
		return
	}

	article, err := h.articleService.RestoreToVersion(c.Request.Context(), c.Param("id"), number, p, c.GetHeader(changeReasonHeader))
	if err != nil {
		h.Helper.SendError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Article restored to version "+strconv.Itoa(number), article)
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
