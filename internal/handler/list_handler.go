package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/guard-forms/internal/console"
	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/listing"
	"github.com/noah-isme/guard-forms/internal/service"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/response"
)

type listService interface {
	Fetch(ctx context.Context, kind string, q dto.ListQuery) (*service.ListResult, error)
	Select(kind, view string, id int64) (console.View, error)
	ClearSelection(kind, view string) (console.View, error)
	CloseView(view string) error
	Export(ctx context.Context, kind string, q dto.ExportQuery) (*listing.File, error)
}

// ListHandler serves the console lists.
type ListHandler struct {
	service listService
}

// NewListHandler builds a new handler.
func NewListHandler(service listService) *ListHandler {
	return &ListHandler{service: service}
}

// List godoc
// @Summary Fetch a list for a console view
// @Description Filter parameters update the view; a request overtaken by a newer one for the same view answers 409 SUPERSEDED.
// @Tags Lists
// @Produce json
// @Param kind path string true "users or employees"
// @Param view query string false "View id"
// @Param search query string false "Search text"
// @Param role query string false "Role (users)"
// @Param status query string false "Status (users) or training (employees)"
// @Param gender query string false "Gender M or F (employees)"
// @Param sort query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /lists/{kind} [get]
func (h *ListHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid list query"))
		return
	}
	res, err := h.service.Fetch(c.Request.Context(), c.Param("kind"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"ticket": res.Page.Ticket}
	if res.Page.Empty != "" {
		meta["empty"] = res.Page.Empty
	}
	response.JSON(c, http.StatusOK, res, nil, meta)
}

// Export godoc
// @Summary Export a list
// @Tags Lists
// @Produce octet-stream
// @Param kind path string true "users or employees"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /lists/{kind}/export [get]
func (h *ListHandler) Export(c *gin.Context) {
	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), c.Param("kind"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", attachment(file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Select godoc
// @Summary Select the entity a view acts on
// @Tags Lists
// @Produce json
// @Param kind path string true "users or employees"
// @Param id path int true "Entity id"
// @Param view query string false "View id"
// @Success 200 {object} response.Envelope
// @Router /lists/{kind}/select/{id} [post]
func (h *ListHandler) Select(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.Select(c.Param("kind"), c.Query("view"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ClearSelection godoc
// @Summary Clear the selected entity of a view
// @Tags Lists
// @Produce json
// @Param kind path string true "users or employees"
// @Param view query string false "View id"
// @Success 200 {object} response.Envelope
// @Router /lists/{kind}/select [delete]
func (h *ListHandler) ClearSelection(c *gin.Context) {
	view, err := h.service.ClearSelection(c.Param("kind"), c.Query("view"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// CloseView godoc
// @Summary Forget a console view
// @Tags Lists
// @Param view path string true "View id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /views/{view} [delete]
func (h *ListHandler) CloseView(c *gin.Context) {
	if err := h.service.CloseView(c.Param("view")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
