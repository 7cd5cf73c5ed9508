package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihorario/registration-api/internal/models"
)

func newScheduleMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_schedules").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scheduled_groups").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	schedule := &models.StudentSchedule{StudentID: "est-1", Name: "Fall"}
	groups := []models.ScheduledGroup{
		{CourseCode: "MAT101", GroupName: "G1", Day: models.Monday, StartMinute: 480, EndMinute: 600},
	}
	require.NoError(t, repo.Create(context.Background(), schedule, groups))
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, schedule.ID, groups[0].ScheduleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term, name, created_at FROM student_schedules WHERE id = $1")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "term", "name", "created_at"}).
			AddRow("s-1", "est-1", 3, "Fall", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, schedule_id, course_code, course_name, group_name, day, start_minute, end_minute\n        FROM scheduled_groups WHERE schedule_id = $1 ORDER BY day, start_minute, course_code")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "course_code", "course_name", "group_name", "day", "start_minute", "end_minute"}).
			AddRow("g-1", "s-1", "MAT101", "Calculus I", "G1", 1, 480, 600).
			AddRow("g-2", "s-1", "FIS100", "Physics", "A", 3, 600, 720))

	detail, err := repo.FindByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "est-1", detail.StudentID)
	require.Len(t, detail.Groups, 2)
	assert.Equal(t, "MAT101", detail.Groups[0].CourseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term, name, created_at\n        FROM student_schedules WHERE student_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("est-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "term", "name", "created_at"}).
			AddRow("s-1", "est-1", nil, "Fall", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_schedules WHERE student_id = $1")).
		WithArgs("est-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	schedules, total, err := repo.ListByStudent(context.Background(), "est-1", 1, 20)
	require.NoError(t, err)
	assert.Len(t, schedules, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
