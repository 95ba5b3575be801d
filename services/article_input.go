package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

// fieldValidator is satisfied by helper.Validator.
type fieldValidator interface {
	FieldErrors(v interface{}) []models.FieldError
}

func (s *articleService) cleanInput(in models.ArticleInput) models.ArticleInput {
	return models.ArticleInput{
		Title:           s.sanitizer.PlainText(in.Title),
		Body:            s.sanitizer.RichText(in.Body),
		Category:        s.sanitizer.PlainText(in.Category),
		Tags:            dedupe(s.sanitizer.PlainList(in.Tags)),
		RelatedArticles: dedupe(s.sanitizer.PlainList(in.RelatedArticles)),
	}
}

// validateInput reports every field problem at once. On success the category
// is rewritten to its stored spelling.
func (s *articleService) validateInput(ctx context.Context, articleID string, in *models.ArticleInput) error {
	fields := s.validator.FieldErrors(in)

	for _, id := range in.RelatedArticles {
		if articleID != "" && id == articleID {
			fields = append(fields, models.FieldError{Field: "relatedArticles", Message: "an article cannot be related to itself"})
			break
		}
	}

	if in.Category != "" {
		name, err := s.categories.Resolve(ctx, in.Category)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fields = append(fields, models.FieldError{Field: "category", Message: fmt.Sprintf("category %q does not exist", in.Category)})
		case err != nil:
			return storageError(err, "category")
		default:
			in.Category = name
		}
	}

	if len(fields) > 0 {
		return models.NewValidationFailed(fields)
	}
	return nil
}

// mergeUpdate overlays the sanitized fields present in req onto the current
// content. Absent fields are left untouched.
func (s *articleService) mergeUpdate(current models.Article, req models.UpdateArticleRequest) models.ArticleInput {
	in := inputOf(current)
	if req.Title != nil {
		in.Title = s.sanitizer.PlainText(*req.Title)
	}
	if req.Body != nil {
		in.Body = s.sanitizer.RichText(*req.Body)
	}
	if req.Category != nil {
		in.Category = s.sanitizer.PlainText(*req.Category)
	}
	if req.Tags != nil {
		in.Tags = dedupe(s.sanitizer.PlainList(*req.Tags))
	}
	if req.RelatedArticles != nil {
		in.RelatedArticles = dedupe(s.sanitizer.PlainList(*req.RelatedArticles))
	}
	return in
}

func inputOf(a models.Article) models.ArticleInput {
	return models.ArticleInput{
		Title:           a.Title,
		Body:            a.Body,
		Category:        a.Category,
		Tags:            a.Tags,
		RelatedArticles: a.RelatedArticles,
	}
}

// changedFields names the content fields that differ, in display order.
func changedFields(before, after models.ArticleInput) []string {
	var out []string
	if before.Title != after.Title {
		out = append(out, "title")
	}
	if before.Body != after.Body {
		out = append(out, "body")
	}
	if before.Category != after.Category {
		out = append(out, "category")
	}
	if !reflect.DeepEqual(nonNil(before.Tags), nonNil(after.Tags)) {
		out = append(out, "tags")
	}
	if !reflect.DeepEqual(nonNil(before.RelatedArticles), nonNil(after.RelatedArticles)) {
		out = append(out, "relatedArticles")
	}
	return out
}

func applyInput(a *models.Article, in models.ArticleInput) {
	a.Title = in.Title
	a.Body = in.Body
	a.Category = in.Category
	a.Tags = nonNil(in.Tags)
	a.RelatedArticles = nonNil(in.RelatedArticles)
}

func dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
