package helper

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"

	"github.com/gin-gonic/gin"
)

const (
	textOk      = `ok`
	codeSuccess = 200
	codeCreated = 201

	// CorrelationIDKey is the gin context key holding the request's correlation id.
	CorrelationIDKey = "correlation_id"
)

// ResponseHelper ...
type ResponseHelper struct {
	C        *gin.Context
	Status   string
	Message  string
	Data     interface{}
	Code     int
	CodeType string
}

// HTTPHelper ...
type HTTPHelper struct{}

// SetResponse ...
// Set response data.
func (u *HTTPHelper) SetResponse(c *gin.Context, status string, message string, data interface{}, code int, codeType string) ResponseHelper {
	return ResponseHelper{c, status, message, data, code, codeType}
}

type errorBody struct {
	Code             models.ErrorCode       `json:"code"`
	Message          string                 `json:"message"`
	CorrelationID    string                 `json:"correlationId"`
	ValidationErrors []models.FieldError    `json:"validationErrors,omitempty"`
	Details          map[string]interface{} `json:"details,omitempty"`
}

// AsAppError normalizes any error into an AppError.
func AsAppError(err error) *models.AppError {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return &models.AppError{Code: models.CodeTimeout, Message: "request timed out", Err: err}
	case errors.Is(err, storage.ErrUnavailable):
		return &models.AppError{Code: models.CodeServiceUnavailable, Message: "storage temporarily unavailable", Err: err}
	case errors.Is(err, storage.ErrNotFound):
		return &models.AppError{Code: models.CodeNotFound, Message: "resource not found", Err: err}
	}
	return models.NewInternal("internal server error", err)
}

// SendError ...
// Send error response to consumers.
func (u *HTTPHelper) SendError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	status := appErr.Code.HTTPStatus()
	correlationID := c.GetString(CorrelationIDKey)

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", appErr.Err,
			"correlation_id", correlationID,
			"uri", c.Request.RequestURI,
		)
	}
	if appErr.Code.Retryable() {
		c.Header("Retry-After", "1")
	}

	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Code:             appErr.Code,
		Message:          appErr.Message,
		CorrelationID:    correlationID,
		ValidationErrors: appErr.ValidationErrors,
		Details:          appErr.Details,
	}})
}

// SendBindError ...
// Translate a request binding failure: malformed JSON is bad input, tag
// violations are reported field by field.
func (u *HTTPHelper) SendBindError(c *gin.Context, err error) {
	fields, ok := BindFieldErrors(err)
	if !ok {
		u.SendError(c, models.NewBadInput("malformed request: "+err.Error()))
		return
	}
	u.SendError(c, models.NewValidationFailed(fields))
}

// SendBadRequest ...
// Send bad request response to consumers.
func (u *HTTPHelper) SendBadRequest(c *gin.Context, message string) {
	u.SendError(c, models.NewBadInput(message))
}

// SendUnauthorizedError ...
// Send unauthorized response to consumers.
func (u *HTTPHelper) SendUnauthorizedError(c *gin.Context, message string) {
	u.SendError(c, models.NewUnauthenticated(message))
}

// SendSuccess ...
// Send success response to consumers.
func (u *HTTPHelper) SendSuccess(c *gin.Context, message string, data interface{}) error {
	res := u.SetResponse(c, textOk, message, data, codeSuccess, `success`)

	return u.SendResponse(res)
}

// SendCreated ...
// Send created response to consumers.
func (u *HTTPHelper) SendCreated(c *gin.Context, message string, data interface{}) error {
	res := u.SetResponse(c, textOk, message, data, codeCreated, `created`)

	return u.SendResponse(res)
}

// SendSuccessWithPaging ...
// Send a page of results plus pagination links.
func (u *HTTPHelper) SendSuccessWithPaging(c *gin.Context, message string, data interface{}, page, limit, totalRecord int) error {
	c.JSON(http.StatusOK, map[string]interface{}{
		"code":         codeSuccess,
		"code_type":    "success",
		"code_message": message,
		"data":         data,
		"pagination":   u.GeneratePaging(c, 0, 0, limit, page, totalRecord),
	})
	return nil
}

// SendResponse ...
// Send response
func (u *HTTPHelper) SendResponse(res ResponseHelper) error {
	if len(res.Message) == 0 {
		res.Message = `success`
	}

	resCode := res.Code
	if resCode < 200 || resCode > 299 {
		resCode = http.StatusOK
	}

	res.C.JSON(resCode, map[string]interface{}{
		"code":         res.Code,
		"code_type":    res.CodeType,
		"code_message": res.Message,
		"data":         res.Data,
	})
	return nil
}

func (u *HTTPHelper) EmptyJsonMap() map[string]interface{} {
	return make(map[string]interface{})
}

// get pagination URL, keeping the other query parameters
func (u *HTTPHelper) GetPagingUrl(c *gin.Context, page, limit int) string {
	r := c.Request
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	query := r.URL.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	return scheme + "://" + r.Host + r.URL.Path + "?" + query.Encode()
}

// Set paginantion response
func (u *HTTPHelper) GeneratePaging(c *gin.Context, prev, next, limit, page, totalRecord int) map[string]interface{} {

	prevURL, nextURL, firstURL, lastURL := "", "", "", ""

	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(totalRecord) / float64(limit)))
	}

	if page > 1 {
		prev = page - 1
	}
	if page < totalPages {
		next = page + 1
	}

	if totalPages >= page && page > 1 {
		prevURL = u.GetPagingUrl(c, prev, limit)
	}

	if totalPages > page {
		nextURL = u.GetPagingUrl(c, next, limit)
	}

	if totalPages >= page && page > 1 {
		firstURL = u.GetPagingUrl(c, 1, limit)
	}

	if totalPages >= page && totalPages != page {
		lastURL = u.GetPagingUrl(c, totalPages, limit)
	}

	links := map[string]interface{}{
		"previous": prevURL,
		"next":     nextURL,
		"first":    firstURL,
		"last":     lastURL,
	}

	pagination := map[string]interface{}{
		"total_records": totalRecord,
		"per_page":      limit,
		"current_page":  page,
		"total_pages":   totalPages,
		"links":         links,
	}

	return pagination
}
