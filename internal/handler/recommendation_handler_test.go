package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihorario/registration-api/internal/models"
	"github.com/unihorario/registration-api/internal/service"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
)

type fakeCatalogProvider struct {
	courses []models.Course
	err     error
}

func (f *fakeCatalogProvider) FetchCourses(ctx context.Context) ([]models.Course, error) {
	return f.courses, f.err
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (noopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func newRecommendationHandler(provider *fakeCatalogProvider) *RecommendationHandler {
	svc := service.NewRecommendationService(provider, noopCache{}, nil, nil, nil, 20, time.Minute)
	return NewRecommendationHandler(svc, nil)
}

func TestRecommendationHandlerRecommend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRecommendationHandler(&fakeCatalogProvider{courses: []models.Course{{
		Code: "MAT101", Name: "Calculus I", Credits: 4,
		Groups: []models.Group{{Code: "G1", Active: true, Seats: 10, Slots: []models.ClassSlot{
			{Day: models.Monday, StartMinute: 480, EndMinute: 600},
		}}},
	}}})

	payload, err := json.Marshal(service.RecommendScheduleRequest{MaxCredits: 18})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/recommendations/schedule", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Recommend(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.RecommendationOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Courses, 1)
	assert.Equal(t, "MAT101", envelope.Data.Courses[0].CourseCode)
	assert.Equal(t, 18, envelope.Data.MaxCredits)
}

func TestRecommendationHandlerUpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRecommendationHandler(&fakeCatalogProvider{err: appErrors.ErrUpstream})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/recommendations/schedule", bytes.NewReader(nil))

	handler.Recommend(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
