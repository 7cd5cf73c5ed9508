package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unihorario/registration-api/internal/models"
	"github.com/unihorario/registration-api/internal/schedule"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
)

const catalogCacheKey = "catalog:courses"

type catalogProvider interface {
	FetchCourses(ctx context.Context) ([]models.Course, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RecommendScheduleRequest holds the per-request knobs of a recommendation
// run. A zero MaxCredits falls back to the configured default ceiling.
type RecommendScheduleRequest struct {
	MaxCredits       int   `json:"max_credits" validate:"omitempty,min=1,max=30"`
	IncludeElectives *bool `json:"include_electives"`
}

// RecommendationService builds greedy schedule recommendations from the
// current catalog snapshot.
type RecommendationService struct {
	catalog           catalogProvider
	cache             catalogCache
	metrics           *MetricsService
	validator         *validator.Validate
	logger            *zap.Logger
	defaultMaxCredits int
	cacheTTL          time.Duration
}

// NewRecommendationService constructs the recommendation service. A nil
// metrics service disables cache instrumentation.
func NewRecommendationService(catalog catalogProvider, cache catalogCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, defaultMaxCredits int, cacheTTL time.Duration) *RecommendationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultMaxCredits <= 0 {
		defaultMaxCredits = schedule.DefaultMaxCredits
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RecommendationService{
		catalog:           catalog,
		cache:             cache,
		metrics:           metrics,
		validator:         validate,
		logger:            logger,
		defaultMaxCredits: defaultMaxCredits,
		cacheTTL:          cacheTTL,
	}
}

// Recommend produces a conflict-free schedule proposal for the current
// catalog. Identical catalog and request always yield the same proposal.
func (s *RecommendationService) Recommend(ctx context.Context, req RecommendScheduleRequest) (*models.RecommendationOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recommendation request")
	}

	courses, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	opts := schedule.Options{MaxCredits: req.MaxCredits, IncludeElectives: true}
	if opts.MaxCredits <= 0 {
		opts.MaxCredits = s.defaultMaxCredits
	}
	if req.IncludeElectives != nil {
		opts.IncludeElectives = *req.IncludeElectives
	}

	outcome := schedule.Build(courses, opts)
	s.logger.Sugar().Infow("recommendation built",
		"courses", len(outcome.Courses),
		"skipped", len(outcome.SkippedForConflicts),
		"total_credits", outcome.TotalCredits,
		"max_credits", outcome.MaxCredits)
	return &outcome, nil
}

// loadCatalog serves the catalog from cache when possible, falling back to
// the courses collaborator and repopulating the snapshot.
func (s *RecommendationService) loadCatalog(ctx context.Context) ([]models.Course, error) {
	var cached []models.Course
	err := s.cache.Get(ctx, catalogCacheKey, &cached)
	if err == nil {
		s.countCache(true)
		return cached, nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Sugar().Warnw("catalog cache read failed", "error", err)
	}
	s.countCache(false)

	courses, err := s.catalog.FetchCourses(ctx)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if err := s.cache.Set(ctx, catalogCacheKey, courses, s.cacheTTL); err != nil {
		s.logger.Sugar().Warnw("catalog cache write failed", "error", err)
	}
	return courses, nil
}

func (s *RecommendationService) countCache(hit bool) {
	if s.metrics != nil {
		s.metrics.CountCatalogCache(hit)
	}
}
