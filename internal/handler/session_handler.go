package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/notify"
	"github.com/noah-isme/guard-forms/internal/session"
	"github.com/noah-isme/guard-forms/internal/submit"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/response"
)

type sessionService interface {
	Open(ctx context.Context, req dto.OpenSessionRequest) (*session.FormSession, error)
	Get(ctx context.Context, id string) (*session.FormSession, error)
	Event(ctx context.Context, id, name string) (*session.FormSession, error)
	Close(ctx context.Context, id string) error
	AddAttachment(ctx context.Context, id string, header *multipart.FileHeader) (*session.FormSession, *session.StagedAttachment, error)
	RemoveAttachment(ctx context.Context, id, localID string) (*session.FormSession, error)
	Submit(ctx context.Context, id string, req dto.SubmitRequest) (*submit.Outcome, []notify.Notification, error)
}

// SessionHandler drives open form modals.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler builds a new handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Open godoc
// @Summary Open a form modal
// @Description Runs show and shown: defaults are applied and the entity is preloaded.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.OpenSessionRequest true "Form and entity"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	fs, err := h.service.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fs)
}

// Get godoc
// @Summary Get a form session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	fs, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fs, nil)
}

// Event godoc
// @Summary Dispatch a modal lifecycle event
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Param event path string true "show, shown, hide or hidden"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/events/{event} [post]
func (h *SessionHandler) Event(c *gin.Context) {
	fs, err := h.service.Event(c.Request.Context(), c.Param("id"), c.Param("event"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fs, nil)
}

// Close godoc
// @Summary Close a form modal
// @Tags Sessions
// @Param id path string true "Session id"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.service.Close(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddAttachment godoc
// @Summary Stage an attachment
// @Tags Sessions
// @Accept mpfd
// @Produce json
// @Param id path string true "Session id"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /sessions/{id}/attachments [post]
func (h *SessionHandler) AddAttachment(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	fs, att, err := h.service.AddAttachment(c.Request.Context(), c.Param("id"), header)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"session": fs, "attachment": att})
}

// RemoveAttachment godoc
// @Summary Remove an attachment
// @Description Staged files are dropped locally; persisted files are deleted on the backend at once.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Param localId path string true "Attachment local id"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attachments/{localId} [delete]
func (h *SessionHandler) RemoveAttachment(c *gin.Context) {
	fs, err := h.service.RemoveAttachment(c.Request.Context(), c.Param("id"), c.Param("localId"))
	if err != nil {
		response.Error(c, err, withNotifications(c, []notify.Notification{notify.Error(appErrors.FromError(err).Message)}))
		return
	}
	response.JSON(c, http.StatusOK, fs, nil)
}

// Submit godoc
// @Summary Submit a form modal
// @Description Invalid input and backend rejections answer 422 with the outcome; notifications travel in meta.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.SubmitRequest true "Values"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submit payload"))
		return
	}
	outcome, items, err := h.service.Submit(c.Request.Context(), c.Param("id"), req)
	meta := withNotifications(c, items)
	if err != nil {
		response.Error(c, err, meta)
		return
	}
	status := http.StatusOK
	if !outcome.OK {
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, outcome, nil, meta)
}
