package submissions

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mathsnap-backend/internal/llm"
	"mathsnap-backend/internal/shared/server/respond"
	"mathsnap-backend/internal/shared/util"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches session workflow routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.create)
	rg.GET("/sessions/:id", h.get)
	rg.POST("/sessions/:id/image", h.uploadImage)
	rg.POST("/sessions/:id/extract", h.extract)
	rg.PUT("/sessions/:id/code", h.updateCode)
	rg.POST("/sessions/:id/submit", h.submit)
	rg.POST("/sessions/:id/restart", h.restart)
	rg.GET("/sessions/:id/export", h.export)
}

type createRequest struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Category    string `json:"category"`
}

type submissionResponse struct {
	SessionID   string `json:"sessionId"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Category    string `json:"category,omitempty"`
	HasImage    bool   `json:"hasImage"`
	LatexCode   string `json:"latexCode"`
	Status      string `json:"status"`
	ErrorDetail string `json:"errorDetail,omitempty"`
	ImageLink   string `json:"imageLink,omitempty"`
	CreatedAt   string `json:"createdAt"`
	SubmittedAt string `json:"submittedAt,omitempty"`
}

func toResponse(sessionID string, sub Submission) submissionResponse {
	resp := submissionResponse{
		SessionID:   sessionID,
		StudentID:   sub.StudentID,
		StudentName: sub.StudentName,
		Category:    sub.Category,
		HasImage:    len(sub.ImageJPEG) > 0,
		LatexCode:   sub.LatexCode,
		Status:      sub.Status,
		ErrorDetail: sub.ErrorDetail,
		ImageLink:   sub.ImageLink,
		CreatedAt:   sub.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !sub.SubmittedAt.IsZero() {
		resp.SubmittedAt = sub.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	sess, err := h.Svc.Create(req.StudentID, req.StudentName, req.Category)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	c.Set("sessionId", sess.ID)
	respond.JSON(c, http.StatusCreated, toResponse(sess.ID, sess.Snapshot()))
}

func (h *Handler) get(c *gin.Context) {
	sess, err := h.Svc.Get(c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}
	respond.OK(c, toResponse(sess.ID, sess.Snapshot()))
}

func (h *Handler) uploadImage(c *gin.Context) {
	id := c.Param("id")
	c.Set("sessionId", id)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	sub, err := h.Svc.AttachImage(id, data)
	if err != nil {
		h.writeWorkflowError(c, err, "unable to attach image")
		return
	}

	respond.OK(c, toResponse(id, sub))
}

func (h *Handler) extract(c *gin.Context) {
	id := c.Param("id")
	c.Set("sessionId", id)

	sub, err := h.Svc.Extract(c.Request.Context(), id)
	if err != nil {
		if kind := llm.KindOf(err); kind != "" {
			status := http.StatusBadGateway
			if kind == llm.KindInvalidCredentials {
				status = http.StatusUnauthorized
			}
			respond.Error(c, status, string(kind), err.Error(), nil)
			return
		}
		h.writeWorkflowError(c, err, "extraction failed")
		return
	}

	respond.OK(c, toResponse(id, sub))
}

type updateCodeRequest struct {
	LatexCode string `json:"latexCode"`
}

func (h *Handler) updateCode(c *gin.Context) {
	id := c.Param("id")
	c.Set("sessionId", id)

	var req updateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	sub, err := h.Svc.UpdateCode(id, req.LatexCode)
	if err != nil {
		h.writeWorkflowError(c, err, "unable to update code")
		return
	}

	respond.OK(c, toResponse(id, sub))
}

func (h *Handler) submit(c *gin.Context) {
	id := c.Param("id")
	c.Set("sessionId", id)

	sub, err := h.Svc.Submit(c.Request.Context(), id)
	if err != nil {
		var submitErr *SubmitError
		if errors.As(err, &submitErr) {
			code := "storage_error"
			if submitErr.Stage == "ledger" {
				code = "ledger_error"
			}
			c.Set("statusTransition", StatusSubmitting+"->"+StatusFailed)
			respond.Error(c, http.StatusBadGateway, code, submitErr.Error(), toResponse(id, sub))
			return
		}
		h.writeWorkflowError(c, err, "unable to submit")
		return
	}

	c.Set("statusTransition", StatusSubmitting+"->"+StatusSubmitted)
	respond.OK(c, toResponse(id, sub))
}

func (h *Handler) restart(c *gin.Context) {
	id := c.Param("id")
	c.Set("sessionId", id)

	sub, err := h.Svc.Restart(id)
	if err != nil {
		h.writeWorkflowError(c, err, "unable to restart")
		return
	}

	respond.OK(c, toResponse(id, sub))
}

func (h *Handler) export(c *gin.Context) {
	sess, err := h.Svc.Get(c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}

	sub := sess.Snapshot()
	name := fmt.Sprintf("%s_%s.tex", sub.StudentID, sub.StudentName)
	sanitized, err := util.SanitizeFileName(name)
	if err != nil {
		sanitized = "submission.tex"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitized))
	c.Data(http.StatusOK, "text/x-tex; charset=utf-8", []byte(sub.LatexCode))
}

func (h *Handler) writeWorkflowError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
	case errors.Is(err, ErrInvalidIdentity), errors.Is(err, ErrNoImage):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrSubmitInFlight), errors.Is(err, ErrClosed):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", fallback+": "+err.Error(), nil)
	}
}
