package handler

import (
	"net/http"

	"github.com/family-finance-ledger/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// Error codes of the statement draft API
const (
	CodeBadRequest           = "bad_request"
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "budget_forbidden"
	CodeNotFound             = "draft_not_found"
	CodeConflict             = "draft_conflict"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeStatementRequired    = "statement_required"
	CodeUnreadableStatement  = "unreadable_statement"
	CodeStatementTooLarge    = "statement_too_large"
	CodeContractViolation    = "contract_violation"
	CodeLLMError             = "llm_error"
	CodeApplyFailed          = "statement_apply_failed"
	CodeInternal             = "internal_error"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error         string         `json:"error"`
	Reason        string         `json:"reason,omitempty"`
	Message       string         `json:"message,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondWithError sends a JSON error body carrying the correlation ID
func RespondWithError(c *gin.Context, statusCode int, body ErrorResponse) {
	body.CorrelationID = middleware.GetCorrelationID(c)
	c.AbortWithStatusJSON(statusCode, body)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Message: message})
}

// RespondNotFound sends a 404 Not Found response with an error
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, ErrorResponse{Error: CodeNotFound, Message: message})
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, ErrorResponse{
		Error:   CodeInternal,
		Message: "An internal server error occurred",
	})
}
