package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/forms"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/response"
)

type formService interface {
	List() []dto.FormSummary
	Get(id string) (*forms.Definition, error)
	Validate(id string, req dto.ValidateFormRequest) (*forms.Report, error)
	Input(id string, req dto.InputRequest) (*forms.InputResult, error)
}

// FormHandler exposes form definitions and stateless validation.
type FormHandler struct {
	service formService
}

// NewFormHandler builds a new handler.
func NewFormHandler(service formService) *FormHandler {
	return &FormHandler{service: service}
}

// List godoc
// @Summary List forms
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /forms [get]
func (h *FormHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.List(), nil)
}

// Get godoc
// @Summary Get form definition
// @Tags Forms
// @Produce json
// @Param form path string true "Form id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{form} [get]
func (h *FormHandler) Get(c *gin.Context) {
	def, err := h.service.Get(c.Param("form"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, def, nil)
}

// Validate godoc
// @Summary Validate a whole form
// @Description Every visible field is reported; first_invalid names the field to scroll to.
// @Tags Forms
// @Accept json
// @Produce json
// @Param form path string true "Form id"
// @Param payload body dto.ValidateFormRequest true "Form values"
// @Success 200 {object} response.Envelope
// @Router /forms/{form}/validate [post]
func (h *FormHandler) Validate(c *gin.Context) {
	var req dto.ValidateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}
	report, err := h.service.Validate(c.Param("form"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Input godoc
// @Summary Evaluate a live field change
// @Tags Forms
// @Accept json
// @Produce json
// @Param form path string true "Form id"
// @Param payload body dto.InputRequest true "Changed field"
// @Success 200 {object} response.Envelope
// @Router /forms/{form}/input [post]
func (h *FormHandler) Input(c *gin.Context) {
	var req dto.InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid input payload"))
		return
	}
	res, err := h.service.Input(c.Param("form"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
