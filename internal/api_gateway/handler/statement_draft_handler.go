package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/family-finance-ledger/internal/api_gateway/middleware"
	"github.com/family-finance-ledger/internal/api_gateway/service"
	"github.com/family-finance-ledger/internal/domain/budget"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/platform/llm"
	"github.com/family-finance-ledger/internal/statement/apply"
	"github.com/family-finance-ledger/internal/statement/decoder"
	"github.com/family-finance-ledger/internal/statement/drafting"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatementDraftHandler handles HTTP requests for statement drafts
type StatementDraftHandler struct {
	draftService   service.StatementDraftService
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewStatementDraftHandler creates a new statement draft handler
func NewStatementDraftHandler(logger *slog.Logger, draftService service.StatementDraftService, maxUploadBytes int64) *StatementDraftHandler {
	return &StatementDraftHandler{
		draftService:   draftService,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Create drafts a statement from an uploaded file or pasted text
func (h *StatementDraftHandler) Create(c *gin.Context) {
	logger := h.requestLogger(c)

	var form CreateDraftForm
	if err := c.ShouldBind(&form); err != nil {
		logger.Warn("Invalid statement draft form", "error", err)
		RespondBadRequest(c, "Invalid form: "+err.Error())
		return
	}
	budgetID, err := uuid.Parse(form.BudgetID)
	if err != nil {
		RespondBadRequest(c, "Invalid budget ID")
		return
	}

	req := service.CreateDraftRequest{
		UserID:        middleware.GetUserID(c),
		BudgetID:      budgetID,
		StatementText: form.StatementText,
		Source:        form.Source,
	}

	if form.StatementDate != "" {
		date, err := time.Parse(time.DateOnly, form.StatementDate)
		if err != nil {
			RespondBadRequest(c, "statement_date must be YYYY-MM-DD")
			return
		}
		req.StatementDate = &date
	}

	if strings.TrimSpace(form.StatementText) == "" {
		if fileHeader, err := c.FormFile("file"); err == nil {
			if fileHeader.Size > h.maxUploadBytes {
				RespondWithError(c, http.StatusRequestEntityTooLarge, ErrorResponse{
					Error:   CodeStatementTooLarge,
					Message: fmt.Sprintf("statement file exceeds %d bytes", h.maxUploadBytes),
				})
				return
			}
			upload, err := readUpload(fileHeader)
			if err != nil {
				logger.Error("Failed to read uploaded statement", "filename", fileHeader.Filename, "error", err)
				RespondBadRequest(c, "Could not read uploaded file")
				return
			}
			req.File = upload
		}
	}

	d, err := h.draftService.CreateDraft(c.Request.Context(), req)
	if err != nil {
		h.respondServiceError(c, logger, err)
		return
	}

	RespondCreated(c, DraftWithPayloadResponse{Draft: mapDraftToResponse(d), Payload: d.Payload})
}

// Revise re-drafts a statement using the user's feedback
func (h *StatementDraftHandler) Revise(c *gin.Context) {
	logger := h.requestLogger(c)

	draftID, ok := parseDraftID(c)
	if !ok {
		return
	}

	var form ReviseDraftForm
	if err := c.ShouldBind(&form); err != nil || strings.TrimSpace(form.Feedback) == "" {
		RespondBadRequest(c, "feedback is required")
		return
	}

	d, err := h.draftService.ReviseDraft(c.Request.Context(), middleware.GetUserID(c), draftID, strings.TrimSpace(form.Feedback))
	if err != nil {
		h.respondServiceError(c, logger.With("draft_id", draftID.String()), err)
		return
	}

	RespondOK(c, DraftWithPayloadResponse{Draft: mapDraftToResponse(d), Payload: d.Payload})
}

// GetByID returns a draft owned by the caller
func (h *StatementDraftHandler) GetByID(c *gin.Context) {
	draftID, ok := parseDraftID(c)
	if !ok {
		return
	}

	d, err := h.draftService.GetDraft(c.Request.Context(), middleware.GetUserID(c), draftID)
	if err != nil {
		h.respondServiceError(c, h.requestLogger(c).With("draft_id", draftID.String()), err)
		return
	}

	RespondOK(c, DraftWithPayloadResponse{Draft: mapDraftToResponse(d), Payload: d.Payload})
}

// Apply commits a confirmed draft into the budget
func (h *StatementDraftHandler) Apply(c *gin.Context) {
	draftID, ok := parseDraftID(c)
	if !ok {
		return
	}

	confirm := false
	raw := c.PostForm("confirm")
	if raw == "" {
		raw = c.Query("confirm")
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			RespondBadRequest(c, "confirm must be a boolean")
			return
		}
		confirm = parsed
	}

	result, err := h.draftService.ApplyDraft(c.Request.Context(), middleware.GetUserID(c), draftID, confirm)
	if err != nil {
		h.respondServiceError(c, h.requestLogger(c).With("draft_id", draftID.String()), err)
		return
	}

	RespondOK(c, mapApplyResultToResponse(result))
}

func (h *StatementDraftHandler) respondServiceError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		unreadable  service.ErrUnreadableStatement
		draftingErr service.ErrDraftingFailed
		transition  draft.ErrInvalidTransition
		applyErr    apply.ErrApply
	)

	switch {
	case errors.Is(err, decoder.ErrUnsupportedFormat):
		RespondWithError(c, http.StatusUnsupportedMediaType, ErrorResponse{Error: CodeUnsupportedMediaType, Message: err.Error()})

	case errors.Is(err, service.ErrMissingStatement):
		RespondWithError(c, http.StatusUnprocessableEntity, ErrorResponse{Error: CodeStatementRequired, Message: err.Error()})

	case errors.As(err, &unreadable):
		reason := "unreadable"
		if errors.Is(err, decoder.ErrUnextractablePDF) {
			reason = "unextractable_pdf"
		}
		RespondWithError(c, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   CodeUnreadableStatement,
			Reason:  reason,
			Message: unreadable.Err.Error(),
		})

	case errors.As(err, &draftingErr):
		h.respondDraftingError(c, logger, draftingErr)

	case errors.Is(err, draft.ErrDraftNotFound{}):
		RespondNotFound(c, "Statement draft not found")

	case errors.Is(err, budget.ErrAccessDenied{}):
		logger.Warn("Budget access denied", "error", err)
		RespondWithError(c, http.StatusForbidden, ErrorResponse{Error: CodeForbidden, Message: "Budget not found for user"})

	case errors.As(err, &transition):
		RespondWithError(c, http.StatusConflict, ErrorResponse{
			Error:   CodeConflict,
			Reason:  "draft_" + string(transition.From),
			Message: err.Error(),
			Details: map[string]any{"status": transition.From},
		})

	case errors.As(err, &applyErr):
		h.respondApplyError(c, logger, applyErr)

	default:
		logger.Error("Statement draft request failed", "error", err)
		RespondInternalError(c)
	}
}

func (h *StatementDraftHandler) respondDraftingError(c *gin.Context, logger *slog.Logger, err service.ErrDraftingFailed) {
	details := map[string]any{}
	if err.Draft != nil {
		details["draft_id"] = err.Draft.ID.String()
	}

	var contractErr drafting.ErrContractViolation
	if errors.As(err, &contractErr) {
		details["violations"] = contractErr.Violations
		logger.Warn("LLM response violated the draft contract", "violations", len(contractErr.Violations))
		RespondWithError(c, http.StatusBadRequest, ErrorResponse{
			Error:   CodeContractViolation,
			Reason:  string(draft.ReasonContractViolation),
			Message: "The model response does not match the draft schema",
			Details: details,
		})
		return
	}

	var llmErr llm.ErrLLM
	if errors.As(err, &llmErr) {
		details["message"] = llmErr.Message
	}
	logger.Warn("LLM request failed", "error", err)
	RespondWithError(c, http.StatusBadGateway, ErrorResponse{
		Error:   CodeLLMError,
		Reason:  string(draft.ReasonLLMError),
		Message: "The statement model is unavailable or returned an unusable response",
		Details: details,
	})
}

func (h *StatementDraftHandler) respondApplyError(c *gin.Context, logger *slog.Logger, err apply.ErrApply) {
	status := http.StatusUnprocessableEntity
	switch {
	case err.Reason == apply.ReasonConfirmationRequired:
		status = http.StatusBadRequest
	case err.Conflict:
		status = http.StatusConflict
	case err.Reason == apply.ReasonInternalError:
		status = http.StatusInternalServerError
		logger.Error("Statement apply failed", "error", err)
	}

	details := err.Details
	if status == http.StatusInternalServerError {
		details = nil
	}
	RespondWithError(c, status, ErrorResponse{
		Error:   CodeApplyFailed,
		Reason:  string(err.Reason),
		Details: details,
	})
}

func (h *StatementDraftHandler) requestLogger(c *gin.Context) *slog.Logger {
	logger := h.logger
	if correlationID := middleware.GetCorrelationID(c); correlationID != "" {
		logger = logger.With("correlation_id", correlationID)
	}
	return logger
}

func parseDraftID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid draft ID")
		return uuid.Nil, false
	}
	return id, true
}

func readUpload(fileHeader *multipart.FileHeader) (*service.Upload, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
