package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var sortFields = map[string]string{
	"createdAt":  "createdAt",
	"updatedAt":  "updatedAt",
	"briefTitle": "title",
	"title":      "title",
	"viewCount":  "viewCount",
}

// GetArticle returns one visible article. Reading a published article bumps
// its view count outside the version protocol.
func (s *articleService) GetArticle(ctx context.Context, id string, p models.Principal) (*models.Article, error) {
	article, err := s.load(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if article.Status == models.StatusPublished {
		if bumped, ok := s.incrementViews(ctx, id); ok {
			article = bumped
		}
	}
	return s.withLock(ctx, *article)
}

// incrementViews runs under the article section so it cannot overwrite a
// concurrent content change. Failures are only logged.
func (s *articleService) incrementViews(ctx context.Context, id string) (*models.Article, bool) {
	release := s.sections.Lock(id)
	defer release()

	article, err := s.articleRepo.GetByID(ctx, id)
	if err != nil || article.Status != models.StatusPublished {
		return nil, false
	}
	article.ViewCount++
	if err := s.articleRepo.Update(ctx, article); err != nil {
		slog.Warn("View count not recorded", "article_id", id, "error", err)
		return nil, false
	}
	return article, true
}

func (s *articleService) GetArticles(ctx context.Context, params models.ArticleListParams, p models.Principal) (*models.ArticlePage, error) {
	if !models.HasPermission(p, models.PermArticleView) {
		return nil, models.NewForbidden("you are not allowed to view articles")
	}
	filter, err := buildFilter(params)
	if err != nil {
		return nil, err
	}
	filter.Visible = func(a models.Article) bool {
		return canView(p, a)
	}

	articles, total, err := s.articleRepo.GetList(ctx, filter)
	if err != nil {
		return nil, storageError(err, "articles")
	}
	for i := range articles {
		if err := s.locks.mirror(ctx, &articles[i]); err != nil {
			return nil, err
		}
	}

	return &models.ArticlePage{
		Articles: articles,
		Total:    total,
		Page:     filter.Page,
		Limit:    filter.Limit,
	}, nil
}

func buildFilter(params models.ArticleListParams) (repositories.ArticleFilter, error) {
	filter := repositories.ArticleFilter{
		Query:    strings.TrimSpace(params.Query),
		Category: strings.TrimSpace(params.Category),
		AuthorID: strings.TrimSpace(params.AuthorID),
		Page:     params.Page,
		Limit:    params.Limit,
	}

	for _, tag := range params.Tags {
		for _, t := range strings.Split(tag, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Tags = append(filter.Tags, t)
			}
		}
	}

	if params.Status != "" {
		status := models.ArticleStatus(params.Status)
		if !status.Valid() {
			return filter, models.NewBadInput(fmt.Sprintf("unknown status %q", params.Status))
		}
		filter.Status = status
	}

	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	field, ok := sortFields[sortBy]
	if !ok {
		return filter, models.NewBadInput(fmt.Sprintf("cannot sort by %q", params.SortBy))
	}
	filter.SortBy = field

	switch strings.ToLower(params.SortOrder) {
	case "", "desc":
		filter.SortOrder = "desc"
	case "asc":
		filter.SortOrder = "asc"
	default:
		return filter, models.NewBadInput("sortOrder must be asc or desc")
	}

	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Page < 1 {
		return filter, models.NewBadInput("page must be at least 1")
	}
	if filter.Limit == 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit < 1 {
		return filter, models.NewBadInput("limit must be at least 1")
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	var err error
	if filter.CreatedFrom, err = parseBound("createdFrom", params.CreatedFrom, false); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseBound("createdTo", params.CreatedTo, true); err != nil {
		return filter, err
	}
	if filter.UpdatedFrom, err = parseBound("updatedFrom", params.UpdatedFrom, false); err != nil {
		return filter, err
	}
	if filter.UpdatedTo, err = parseBound("updatedTo", params.UpdatedTo, true); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseBound accepts RFC 3339 or a bare date. A bare upper bound covers the
// whole day.
func parseBound(name, value string, upper bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, models.NewBadInput(fmt.Sprintf("%s must be RFC 3339 or YYYY-MM-DD", name))
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
