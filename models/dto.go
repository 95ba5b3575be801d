package models

type RegisterRequest struct {
	Username string   `json:"username" binding:"required,min=3,max=50"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=6"`
	Role     UserRole `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UpdateRoleRequest struct {
	Role UserRole `json:"role" binding:"required"`
}

// ArticleInput is the validated shape of article content fields.
type ArticleInput struct {
	Title           string   `json:"title" validate:"min=3,max=150"`
	Body            string   `json:"body" validate:"min=10,max=50000"`
	Category        string   `json:"category" validate:"max=50"`
	Tags            []string `json:"tags" validate:"max=10,dive,max=30"`
	RelatedArticles []string `json:"relatedArticles" validate:"max=10"`
}

type CreateArticleRequest struct {
	Title           string   `json:"title"`
	Body            string   `json:"body"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	RelatedArticles []string `json:"relatedArticles"`
}

// UpdateArticleRequest is a partial update: nil fields keep their value.
type UpdateArticleRequest struct {
	Title           *string   `json:"title"`
	Body            *string   `json:"body"`
	Category        *string   `json:"category"`
	Tags            *[]string `json:"tags"`
	RelatedArticles *[]string `json:"relatedArticles"`
}

type ArticleListParams struct {
	Query    string   `form:"query"`
	Status   string   `form:"status"`
	Category string   `form:"category"`
	Tags     []string `form:"tags"`
	AuthorID string   `form:"authorId"`
	// Date bounds are RFC 3339 timestamps or YYYY-MM-DD dates.
	CreatedFrom string `form:"createdFrom"`
	CreatedTo   string `form:"createdTo"`
	UpdatedFrom string `form:"updatedFrom"`
	UpdatedTo   string `form:"updatedTo"`
	SortBy      string `form:"sortBy,default=createdAt"`
	SortOrder   string `form:"sortOrder,default=desc"`
	Page        int    `form:"page,default=1"`
	Limit       int    `form:"limit,default=20"`
}

type ArticlePage struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

type CommentInput struct {
	Content string `json:"content" validate:"min=1,max=2000"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type UpdateCommentRequest struct {
	Content string `json:"content"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=50"`
	Description string `json:"description" binding:"max=500"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=50"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

type ReconcileReport struct {
	Checked   int            `json:"checked"`
	Corrected map[string]int `json:"corrected"`
}
