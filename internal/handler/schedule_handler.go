package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unihorario/registration-api/internal/middleware"
	"github.com/unihorario/registration-api/internal/service"
	"github.com/unihorario/registration-api/pkg/response"
)

// ScheduleHandler exposes finalized schedule endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// List godoc
// @Summary List finalized schedules
// @Tags Schedules
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	schedules, pagination, err := h.schedules.List(c.Request.Context(), middleware.StudentID(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get a finalized schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	detail, err := h.schedules.Get(c.Request.Context(), middleware.StudentID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
