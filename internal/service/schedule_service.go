package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/unihorario/registration-api/internal/models"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
)

type scheduleReader interface {
	ListByStudent(ctx context.Context, studentID string, page, size int) ([]models.StudentSchedule, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentScheduleDetail, error)
}

// ScheduleService exposes read access to finalized schedules.
type ScheduleService struct {
	repo   scheduleReader
	logger *zap.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(repo scheduleReader, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, logger: logger}
}

// List returns the student's finalized schedules.
func (s *ScheduleService) List(ctx context.Context, studentID string, page, size int) ([]models.StudentSchedule, *models.Pagination, error) {
	schedules, total, err := s.repo.ListByStudent(ctx, studentID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one schedule with its groups.
func (s *ScheduleService) Get(ctx context.Context, studentID, scheduleID string) (*models.StudentScheduleDetail, error) {
	detail, err := s.repo.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if detail.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "schedule belongs to another student")
	}
	return detail, nil
}
