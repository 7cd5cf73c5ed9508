package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unihorario/registration-api/internal/models"
)

// ScheduleRepository manages finalized schedules produced from drafts.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create persists a schedule and its groups atomically.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.StudentSchedule, groups []models.ScheduledGroup) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule tx: %w", err)
	}
	defer tx.Rollback()

	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}
	const scheduleQuery = `INSERT INTO student_schedules (id, student_id, term, name, created_at)
        VALUES (:id, :student_id, :term, :name, :created_at)`
	if _, err := tx.NamedExecContext(ctx, scheduleQuery, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}

	const groupQuery = `INSERT INTO scheduled_groups (id, schedule_id, course_code, course_name, group_name, day, start_minute, end_minute)
        VALUES (:id, :schedule_id, :course_code, :course_name, :group_name, :day, :start_minute, :end_minute)`
	for i := range groups {
		if groups[i].ID == "" {
			groups[i].ID = uuid.NewString()
		}
		groups[i].ScheduleID = schedule.ID
		if _, err := tx.NamedExecContext(ctx, groupQuery, groups[i]); err != nil {
			return fmt.Errorf("create scheduled group: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule: %w", err)
	}
	return nil
}

// ListByStudent returns a page of a student's finalized schedules.
func (r *ScheduleRepository) ListByStudent(ctx context.Context, studentID string, page, size int) ([]models.StudentSchedule, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, term, name, created_at
        FROM student_schedules WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, size, offset)
	schedules := []models.StudentSchedule{}
	if err := r.db.SelectContext(ctx, &schedules, query, studentID); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM student_schedules WHERE student_id = $1", studentID); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return schedules, total, nil
}

// FindByID fetches a schedule with its groups.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.StudentScheduleDetail, error) {
	var schedule models.StudentSchedule
	if err := r.db.GetContext(ctx, &schedule, "SELECT id, student_id, term, name, created_at FROM student_schedules WHERE id = $1", id); err != nil {
		return nil, err
	}

	groups := []models.ScheduledGroup{}
	const groupQuery = `SELECT id, schedule_id, course_code, course_name, group_name, day, start_minute, end_minute
        FROM scheduled_groups WHERE schedule_id = $1 ORDER BY day, start_minute, course_code`
	if err := r.db.SelectContext(ctx, &groups, groupQuery, id); err != nil {
		return nil, fmt.Errorf("list scheduled groups: %w", err)
	}

	return &models.StudentScheduleDetail{StudentSchedule: schedule, Groups: groups}, nil
}
