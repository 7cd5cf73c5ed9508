package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unihorario/registration-api/internal/middleware"
	"github.com/unihorario/registration-api/internal/service"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
	"github.com/unihorario/registration-api/pkg/response"
)

// DraftHandler exposes schedule draft endpoints.
type DraftHandler struct {
	drafts  *service.DraftService
	metrics *service.MetricsService
}

// NewDraftHandler constructs DraftHandler.
func NewDraftHandler(drafts *service.DraftService, metrics *service.MetricsService) *DraftHandler {
	return &DraftHandler{drafts: drafts, metrics: metrics}
}

// Create godoc
// @Summary Create a draft
// @Tags Drafts
// @Accept json
// @Produce json
// @Param payload body service.CreateDraftRequest true "Draft payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts [post]
func (h *DraftHandler) Create(c *gin.Context) {
	var req service.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	draft, err := h.drafts.Create(c.Request.Context(), middleware.StudentID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, draft)
}

// List godoc
// @Summary List drafts
// @Tags Drafts
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts [get]
func (h *DraftHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	drafts, pagination, err := h.drafts.List(c.Request.Context(), middleware.StudentID(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drafts, pagination)
}

// Get godoc
// @Summary Get a draft with its entries
// @Tags Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts/{id} [get]
func (h *DraftHandler) Get(c *gin.Context) {
	detail, err := h.drafts.Get(c.Request.Context(), middleware.StudentID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete a draft
// @Tags Drafts
// @Param id path string true "Draft ID"
// @Success 204
// @Security BearerAuth
// @Router /drafts/{id} [delete]
func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.drafts.Delete(c.Request.Context(), middleware.StudentID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddGroup godoc
// @Summary Add a course group to a draft
// @Description Validates the addition against slot conflicts, the credit ceiling and prerequisites, in that order.
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body service.AddGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts/{id}/groups [post]
func (h *DraftHandler) AddGroup(c *gin.Context) {
	var req service.AddGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.drafts.AddGroup(c.Request.Context(), middleware.StudentID(c), c.Param("id"), req)
	if err != nil {
		h.countRejection(err)
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// RemoveEntry godoc
// @Summary Remove a meeting from a draft
// @Tags Drafts
// @Param id path string true "Draft ID"
// @Param entryId path string true "Entry ID"
// @Success 204
// @Security BearerAuth
// @Router /drafts/{id}/groups/{entryId} [delete]
func (h *DraftHandler) RemoveEntry(c *gin.Context) {
	if err := h.drafts.RemoveEntry(c.Request.Context(), middleware.StudentID(c), c.Param("id"), c.Param("entryId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Apply godoc
// @Summary Apply a draft into a finalized schedule
// @Tags Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts/{id}/apply [post]
func (h *DraftHandler) Apply(c *gin.Context) {
	sched, err := h.drafts.Apply(c.Request.Context(), middleware.StudentID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sched)
}

// Export godoc
// @Summary Export a draft timetable
// @Tags Drafts
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Draft ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Security BearerAuth
// @Router /drafts/{id}/export [get]
func (h *DraftHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.drafts.Export(c.Request.Context(), middleware.StudentID(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("draft-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func (h *DraftHandler) countRejection(err error) {
	if h.metrics == nil {
		return
	}
	switch appErrors.FromError(err).Code {
	case appErrors.ErrConflict.Code:
		h.metrics.CountRejection("conflict")
	case appErrors.ErrCreditLimit.Code:
		h.metrics.CountRejection("credit_limit")
	case appErrors.ErrPrerequisite.Code:
		h.metrics.CountRejection("prerequisite")
	}
}
