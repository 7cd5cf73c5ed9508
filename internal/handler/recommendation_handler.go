package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unihorario/registration-api/internal/service"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
	"github.com/unihorario/registration-api/pkg/response"
)

// RecommendationHandler exposes schedule recommendation endpoints.
type RecommendationHandler struct {
	recommendations *service.RecommendationService
	metrics         *service.MetricsService
}

// NewRecommendationHandler constructs RecommendationHandler.
func NewRecommendationHandler(recommendations *service.RecommendationService, metrics *service.MetricsService) *RecommendationHandler {
	return &RecommendationHandler{recommendations: recommendations, metrics: metrics}
}

// Recommend godoc
// @Summary Build a schedule recommendation
// @Description Greedily selects courses and conflict-free groups from the current catalog under a credit ceiling.
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param payload body service.RecommendScheduleRequest false "Recommendation options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /recommendations/schedule [post]
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req service.RecommendScheduleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	start := time.Now()
	outcome, err := h.recommendations.Recommend(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveRecommendation(time.Since(start), len(outcome.SkippedForConflicts))
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
