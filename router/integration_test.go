package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

type IntegrationTestSuite struct {
	suite.Suite
	backend storage.Backend
	router  *gin.Engine
	tokens  map[string]string
	userIDs map[string]string
}

type envelope[T any] struct {
	Code        int    `json:"code"`
	CodeMessage string `json:"code_message"`
	CodeType    string `json:"code_type"`
	Data        T      `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code             models.ErrorCode       `json:"code"`
		Message          string                 `json:"message"`
		CorrelationID    string                 `json:"correlationId"`
		ValidationErrors []models.FieldError    `json:"validationErrors"`
		Details          map[string]interface{} `json:"details"`
	} `json:"error"`
}

func (suite *IntegrationTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.backend = storage.NewMemoryBackend()
	cfg := DefaultConfig("integration-secret")
	suite.router = SetupRouter(cfg, NewServices(suite.backend, cfg, nil))

	suite.tokens = map[string]string{}
	suite.userIDs = map[string]string{}
	for _, role := range []models.UserRole{models.RoleReader, models.RoleActor, models.RoleAuthor, models.RoleEditor} {
		suite.register(string(role), role)
	}
	suite.register("author2", models.RoleAuthor)
}

func (suite *IntegrationTestSuite) TearDownTest() {
	suite.backend.Close()
}

func (suite *IntegrationTestSuite) register(name string, role models.UserRole) {
	w := suite.do("", http.MethodPost, "/api/v1/auth/register", models.RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "password123",
		Role:     role,
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var res envelope[models.AuthResponse]
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
	suite.tokens[name] = res.Data.Token
	suite.userIDs[name] = res.Data.User.ID
}

func (suite *IntegrationTestSuite) do(user, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		suite.Require().NoError(err)
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+suite.tokens[user])
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func decode[T any](suite *IntegrationTestSuite, w *httptest.ResponseRecorder) T {
	var res envelope[T]
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res.Data
}

func (suite *IntegrationTestSuite) errorOf(w *httptest.ResponseRecorder) errorResponse {
	var res errorResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

func (suite *IntegrationTestSuite) createArticle(user, title, category string) models.Article {
	w := suite.do(user, http.MethodPost, "/api/v1/articles", models.CreateArticleRequest{
		Title:    title,
		Body:     "<p>Detailed resolution steps for the service desk.</p>",
		Category: category,
		Tags:     []string{"how-to"},
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Article](suite, w)
}

func (suite *IntegrationTestSuite) TestAuthFlow() {
	w := suite.do("", http.MethodPost, "/api/v1/auth/login", models.LoginRequest{
		Email:    "author@example.com",
		Password: "password123",
	}, nil)
	suite.Equal(http.StatusOK, w.Code)
	login := decode[models.AuthResponse](suite, w)
	suite.NotEmpty(login.Token)
	suite.Equal("author", login.User.Username)
	suite.Empty(login.User.Password)

	w = suite.do("", http.MethodPost, "/api/v1/auth/login", models.LoginRequest{
		Email:    "author@example.com",
		Password: "wrong-password",
	}, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal(models.CodeUnauthenticated, suite.errorOf(w).Error.Code)

	w = suite.do("", http.MethodPost, "/api/v1/auth/register", map[string]string{"username": "x"}, nil)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (suite *IntegrationTestSuite) TestGetProfile() {
	w := suite.do("actor", http.MethodGet, "/api/v1/profile", nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	profile := decode[struct {
		User        models.User         `json:"user"`
		Permissions []models.Permission `json:"permissions"`
	}](suite, w)
	suite.Equal("actor", profile.User.Username)
	suite.Contains(profile.Permissions, models.PermCommentCreate)
	suite.NotContains(profile.Permissions, models.PermArticleCreate)

	w = suite.do("", http.MethodGet, "/api/v1/profile", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *IntegrationTestSuite) TestCreateAndGetArticle() {
	article := suite.createArticle("author", "Connect to the office printer", "")
	suite.Equal(models.StatusDraft, article.Status)
	suite.Equal(1, article.Version)
	suite.Equal(suite.userIDs["author"], article.AuthorID)

	w := suite.do("author", http.MethodGet, "/api/v1/articles/"+article.ID, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal(article.Title, decode[models.Article](suite, w).Title)

	// drafts are hidden from readers as not found
	w = suite.do("reader", http.MethodGet, "/api/v1/articles/"+article.ID, nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do("reader", http.MethodPost, "/api/v1/articles", models.CreateArticleRequest{Title: "Nope", Body: "Readers cannot write."}, nil)
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Equal(models.CodeForbidden, suite.errorOf(w).Error.Code)
}

func (suite *IntegrationTestSuite) TestValidationErrors() {
	w := suite.do("author", http.MethodPost, "/api/v1/articles", models.CreateArticleRequest{
		Title: "ab",
		Body:  "short",
	}, map[string]string{"X-Correlation-ID": "corr-42"})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal("corr-42", w.Header().Get("X-Correlation-ID"))

	res := suite.errorOf(w)
	suite.Equal(models.CodeValidationFailed, res.Error.Code)
	suite.Equal("corr-42", res.Error.CorrelationID)
	suite.Len(res.Error.ValidationErrors, 2)

	w = suite.do("author", http.MethodPost, "/api/v1/articles", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *IntegrationTestSuite) TestArticleVersioning() {
	article := suite.createArticle("author", "Original title", "")

	title := "Updated title"
	w := suite.do("author", http.MethodPut, "/api/v1/articles/"+article.ID, models.UpdateArticleRequest{Title: &title},
		map[string]string{"X-Change-Reason": "typo"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(2, decode[models.Article](suite, w).Version)

	w = suite.do("author", http.MethodGet, "/api/v1/articles/"+article.ID+"/versions", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	list := decode[models.VersionList](suite, w)
	suite.Equal(2, list.CurrentVersion)
	suite.Len(list.Versions, 2)
	suite.Equal("typo", list.Versions[0].ChangeReason)
	suite.Equal("Initial creation", list.Versions[1].ChangeSummary)

	w = suite.do("author", http.MethodGet, "/api/v1/articles/"+article.ID+"/versions/1", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("Original title", decode[models.ArticleVersion](suite, w).Title)

	w = suite.do("author", http.MethodGet, "/api/v1/articles/"+article.ID+"/versions/compare?v1=2&v2=1", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	cmp := decode[models.VersionComparison](suite, w)
	suite.Equal(1, cmp.Older.VersionNumber)
	suite.Require().Len(cmp.Changes, 1)
	suite.Equal("title", cmp.Changes[0].Field)

	w = suite.do("author", http.MethodGet, "/api/v1/articles/"+article.ID+"/versions/compare?v1=x", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do("author", http.MethodPost, "/api/v1/articles/"+article.ID+"/versions/2/restore", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do("author", http.MethodPost, "/api/v1/articles/"+article.ID+"/versions/1/restore", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	restored := decode[models.Article](suite, w)
	suite.Equal(3, restored.Version)
	suite.Equal("Original title", restored.Title)
}

func (suite *IntegrationTestSuite) TestLockScenario() {
	article := suite.createArticle("author", "Shared runbook", "")
	lockPath := "/api/v1/articles/" + article.ID + "/lock"

	w := suite.do("author", http.MethodPost, lockPath, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.True(decode[models.LockResult](suite, w).Success)

	// another principal trying to take or write through the lock
	w = suite.do("editor", http.MethodPost, lockPath, nil, nil)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal("author", suite.errorOf(w).Error.Details["lockedByName"])

	title := "Shared runbook v2"
	w = suite.do("editor", http.MethodPut, "/api/v1/articles/"+article.ID, models.UpdateArticleRequest{Title: &title}, nil)
	suite.Equal(http.StatusLocked, w.Code)
	suite.Equal(models.CodeResourceLocked, suite.errorOf(w).Error.Code)

	w = suite.do("editor", http.MethodGet, lockPath, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	status := decode[models.LockStatus](suite, w)
	suite.True(status.IsLocked)
	suite.False(status.CanEdit)

	w = suite.do("author", http.MethodPut, lockPath, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("Lock renewed", decode[models.LockResult](suite, w).Message)

	// editor force-releases, then takes the lock
	w = suite.do("editor", http.MethodDelete, lockPath, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(decode[models.LockResult](suite, w).Message, "forced override")

	w = suite.do("editor", http.MethodPost, lockPath, nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do("editor", http.MethodPut, "/api/v1/articles/"+article.ID, models.UpdateArticleRequest{Title: &title}, nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *IntegrationTestSuite) TestPublishArchiveLifecycle() {
	article := suite.createArticle("author", "Onboarding checklist", "")
	base := "/api/v1/articles/" + article.ID

	w := suite.do("editor", http.MethodPost, base+"/archive", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do("author2", http.MethodPost, base+"/publish", nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do("author", http.MethodPost, base+"/publish", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(models.StatusPublished, decode[models.Article](suite, w).Status)

	w = suite.do("author", http.MethodPost, base+"/archive", nil, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do("editor", http.MethodPost, base+"/archive", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do("author", http.MethodPost, base+"/publish", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do("author", http.MethodDelete, base, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(models.StatusDeleted, decode[models.Article](suite, w).Status)

	w = suite.do("author", http.MethodPost, base+"/restore", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(models.StatusDraft, decode[models.Article](suite, w).Status)

	w = suite.do("author", http.MethodDelete, base, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do("author", http.MethodDelete, base+"/permanent", nil, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do("editor", http.MethodDelete, base+"/permanent", nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do("editor", http.MethodGet, base, nil, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *IntegrationTestSuite) TestComments() {
	article := suite.createArticle("author", "Clear Teams cache", "")
	commentsPath := "/api/v1/articles/" + article.ID + "/comments"

	w := suite.do("actor", http.MethodPost, commentsPath, models.CreateCommentRequest{Content: "Too early"}, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do("author", http.MethodPost, "/api/v1/articles/"+article.ID+"/publish", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do("reader", http.MethodPost, commentsPath, models.CreateCommentRequest{Content: "Readers cannot comment"}, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do("actor", http.MethodPost, commentsPath, models.CreateCommentRequest{Content: "Worked after a restart"}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	comment := decode[models.Comment](suite, w)

	w = suite.do("reader", http.MethodGet, commentsPath, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Len(decode[[]models.Comment](suite, w), 1)

	w = suite.do("author2", http.MethodPut, "/api/v1/comments/"+comment.ID, models.UpdateCommentRequest{Content: "Hijack"}, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do("actor", http.MethodPut, "/api/v1/comments/"+comment.ID, models.UpdateCommentRequest{Content: "Worked after two restarts"}, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.True(decode[models.Comment](suite, w).IsEdited)

	w = suite.do("actor", http.MethodDelete, "/api/v1/comments/"+comment.ID, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *IntegrationTestSuite) TestCategoryManagement() {
	w := suite.do("author", http.MethodPost, "/api/v1/categories", models.CreateCategoryRequest{Name: "Network"}, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do("editor", http.MethodPost, "/api/v1/categories", models.CreateCategoryRequest{Name: "Network"}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)
	category := decode[models.Category](suite, w)

	w = suite.do("editor", http.MethodPost, "/api/v1/categories", models.CreateCategoryRequest{Name: "network"}, nil)
	suite.Equal(http.StatusConflict, w.Code)

	article := suite.createArticle("author", "VPN split tunnelling", "NETWORK")
	suite.Equal("Network", article.Category)

	w = suite.do("reader", http.MethodGet, "/api/v1/categories/"+category.ID, nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal(1, decode[models.Category](suite, w).ArticleCount)

	w = suite.do("editor", http.MethodDelete, "/api/v1/categories/"+category.ID, nil, nil)
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.do("author", http.MethodDelete, "/api/v1/articles/"+article.ID, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do("editor", http.MethodPost, "/api/v1/categories/reconcile", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Empty(decode[models.ReconcileReport](suite, w).Corrected)

	w = suite.do("editor", http.MethodDelete, "/api/v1/categories/"+category.ID, nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do("author", http.MethodPost, "/api/v1/articles", models.CreateArticleRequest{
		Title: "Orphan", Body: "Category no longer exists.", Category: "Network",
	}, nil)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (suite *IntegrationTestSuite) TestListArticlesWithPaging() {
	for i := 0; i < 3; i++ {
		article := suite.createArticle("author", fmt.Sprintf("Guide number %d", i), "")
		w := suite.do("author", http.MethodPost, "/api/v1/articles/"+article.ID+"/publish", nil, nil)
		suite.Require().Equal(http.StatusOK, w.Code)
	}
	suite.createArticle("author", "Hidden draft guide", "")

	w := suite.do("reader", http.MethodGet, "/api/v1/articles?limit=2&sortBy=briefTitle&sortOrder=asc", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Data       []models.Article       `json:"data"`
		Pagination map[string]interface{} `json:"pagination"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
	suite.Len(res.Data, 2)
	suite.Equal("Guide number 0", res.Data[0].Title)
	suite.EqualValues(3, res.Pagination["total_records"])
	suite.EqualValues(2, res.Pagination["total_pages"])

	w = suite.do("reader", http.MethodGet, "/api/v1/articles?sortBy=popularity", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do("reader", http.MethodGet, "/api/v1/articles?page=abc", nil, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *IntegrationTestSuite) TestUpdateRole() {
	w := suite.do("author", http.MethodPut, "/api/v1/users/"+suite.userIDs["reader"]+"/role", models.UpdateRoleRequest{Role: models.RoleAuthor}, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do("editor", http.MethodPut, "/api/v1/users/"+suite.userIDs["reader"]+"/role", models.UpdateRoleRequest{Role: models.RoleAuthor}, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal(models.RoleAuthor, decode[models.User](suite, w).Role)
}

func (suite *IntegrationTestSuite) TestHealthAndMetrics() {
	w := suite.do("", http.MethodGet, "/health", nil, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do("", http.MethodGet, "/metrics", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "kb_http_requests_total")
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
