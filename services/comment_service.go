package services

import (
	"context"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"

	"github.com/google/uuid"
)

type CommentService interface {
	CreateComment(ctx context.Context, articleID string, req models.CreateCommentRequest, p models.Principal) (*models.Comment, error)
	GetComments(ctx context.Context, articleID string, p models.Principal) ([]models.Comment, error)
	UpdateComment(ctx context.Context, id string, req models.UpdateCommentRequest, p models.Principal) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string, p models.Principal) error
}

type commentService struct {
	commentRepo repositories.CommentRepository
	articleRepo repositories.ArticleRepository
	validator   fieldValidator
	sanitizer   sanitizer
	now         Clock
}

func NewCommentService(commentRepo repositories.CommentRepository, articleRepo repositories.ArticleRepository, validator fieldValidator, sanitizer sanitizer, clock Clock) CommentService {
	if clock == nil {
		clock = SystemClock
	}
	return &commentService{
		commentRepo: commentRepo,
		articleRepo: articleRepo,
		validator:   validator,
		sanitizer:   sanitizer,
		now:         clock,
	}
}

func (s *commentService) visibleArticle(ctx context.Context, articleID string, p models.Principal) (*models.Article, error) {
	article, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return nil, storageError(err, "article")
	}
	if !canView(p, *article) {
		return nil, models.NewNotFound("article not found")
	}
	return article, nil
}

func (s *commentService) content(raw string) (string, error) {
	in := models.CommentInput{Content: s.sanitizer.PlainText(raw)}
	if fields := s.validator.FieldErrors(&in); len(fields) > 0 {
		return "", models.NewValidationFailed(fields)
	}
	return in.Content, nil
}

func (s *commentService) CreateComment(ctx context.Context, articleID string, req models.CreateCommentRequest, p models.Principal) (*models.Comment, error) {
	if !models.HasPermission(p, models.PermCommentCreate) {
		return nil, models.NewForbidden("you are not allowed to comment")
	}
	article, err := s.visibleArticle(ctx, articleID, p)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusPublished {
		return nil, models.NewBadInput("comments can only be added to published articles")
	}
	content, err := s.content(req.Content)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:         uuid.NewString(),
		ArticleID:  articleID,
		AuthorID:   p.ID,
		AuthorName: p.Name,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, storageError(err, "comment")
	}
	return comment, nil
}

func (s *commentService) GetComments(ctx context.Context, articleID string, p models.Principal) ([]models.Comment, error) {
	if !models.HasPermission(p, models.PermArticleView) {
		return nil, models.NewForbidden("you are not allowed to view comments")
	}
	if _, err := s.visibleArticle(ctx, articleID, p); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.GetByArticleID(ctx, articleID)
	if err != nil {
		return nil, storageError(err, "comments")
	}
	return comments, nil
}

func (s *commentService) UpdateComment(ctx context.Context, id string, req models.UpdateCommentRequest, p models.Principal) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "comment")
	}
	if !models.CanActOn(p, comment.AuthorID, models.PermCommentEditOwn, models.PermArticleEditAll) {
		return nil, models.NewForbidden("you can only edit your own comments")
	}
	content, err := s.content(req.Content)
	if err != nil {
		return nil, err
	}
	if content == comment.Content {
		return comment, nil
	}

	now := s.now()
	comment.Content = content
	comment.UpdatedAt = &now
	comment.IsEdited = true
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, storageError(err, "comment")
	}
	return comment, nil
}

func (s *commentService) DeleteComment(ctx context.Context, id string, p models.Principal) error {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return storageError(err, "comment")
	}
	if !models.CanActOn(p, comment.AuthorID, models.PermCommentDeleteOwn, models.PermArticleDeleteAll) {
		return models.NewForbidden("you can only delete your own comments")
	}
	if err := s.commentRepo.Delete(ctx, id); err != nil {
		return storageError(err, "comment")
	}
	return nil
}
