package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihorario/registration-api/internal/catalog"
	"github.com/unihorario/registration-api/internal/models"
	"github.com/unihorario/registration-api/internal/notify"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
)

type mockDraftRepo struct {
	db       *sqlx.DB
	draft    *models.Draft
	entries  []models.DraftEntry
	inserted []models.DraftEntry
	deleted  []string
	err      error
}

func (m *mockDraftRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}

func (m *mockDraftRepo) Create(ctx context.Context, draft *models.Draft) error {
	if m.err != nil {
		return m.err
	}
	if draft.ID == "" {
		draft.ID = "d-new"
	}
	m.draft = draft
	return nil
}

func (m *mockDraftRepo) ListByStudent(ctx context.Context, studentID string, page, size int) ([]models.Draft, int, error) {
	if m.draft == nil {
		return nil, 0, nil
	}
	return []models.Draft{*m.draft}, 1, nil
}

func (m *mockDraftRepo) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	if m.draft == nil || m.draft.ID != id {
		return nil, sql.ErrNoRows
	}
	draft := *m.draft
	return &draft, nil
}

func (m *mockDraftRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Draft, error) {
	return m.FindByID(ctx, id)
}

func (m *mockDraftRepo) ListEntries(ctx context.Context, draftID string) ([]models.DraftEntry, error) {
	return m.entries, nil
}

func (m *mockDraftRepo) ListEntriesTx(ctx context.Context, tx *sqlx.Tx, draftID string) ([]models.DraftEntry, error) {
	return m.entries, nil
}

func (m *mockDraftRepo) InsertEntries(ctx context.Context, tx *sqlx.Tx, entries []models.DraftEntry) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, entries...)
	return nil
}

func (m *mockDraftRepo) DeleteEntry(ctx context.Context, draftID, entryID string) error {
	for _, entry := range m.entries {
		if entry.ID == entryID {
			m.deleted = append(m.deleted, entryID)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockDraftRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockScheduleRepo struct {
	created *models.StudentSchedule
	groups  []models.ScheduledGroup
	err     error
}

func (m *mockScheduleRepo) Create(ctx context.Context, sched *models.StudentSchedule, groups []models.ScheduledGroup) error {
	if m.err != nil {
		return m.err
	}
	if sched.ID == "" {
		sched.ID = "s-new"
	}
	m.created = sched
	m.groups = groups
	return nil
}

type mockHistoryProvider struct {
	history catalog.History
	err     error
	calls   int
}

func (m *mockHistoryProvider) FetchHistory(ctx context.Context, studentID string) (catalog.History, error) {
	m.calls++
	if m.err != nil {
		return catalog.History{}, m.err
	}
	return m.history, nil
}

type mockNotifier struct {
	published []notify.Message
}

func (m *mockNotifier) Publish(ctx context.Context, msg notify.Message) error {
	m.published = append(m.published, msg)
	return nil
}

func newDraftFixture(t *testing.T) (*DraftService, *mockDraftRepo, *mockScheduleRepo, *mockHistoryProvider, *mockNotifier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	drafts := &mockDraftRepo{
		db:    sqlx.NewDb(db, "sqlmock"),
		draft: &models.Draft{ID: "d-1", StudentID: "est-1", Name: "Fall plan", CreatedAt: time.Now()},
	}
	schedules := &mockScheduleRepo{}
	history := &mockHistoryProvider{}
	notifier := &mockNotifier{}
	svc := NewDraftService(drafts, schedules, history, notifier, nil, nil, 20)
	return svc, drafts, schedules, history, notifier, mock
}

func entryWithMeta(t *testing.T, course string, day models.Weekday, start, end, credits int) models.DraftEntry {
	t.Helper()
	meta, err := json.Marshal(models.EntryMeta{Credits: credits})
	require.NoError(t, err)
	return models.DraftEntry{
		ID:          course + "-" + day.String(),
		DraftID:     "d-1",
		CourseCode:  course,
		Day:         day,
		StartMinute: start,
		EndMinute:   end,
		Meta:        types.JSONText(meta),
	}
}

func addReq(course string, credits int, slots ...SlotPayload) AddGroupRequest {
	return AddGroupRequest{CourseCode: course, GroupName: "G1", Credits: credits, Schedule: slots}
}

func TestDraftServiceAddGroup(t *testing.T) {
	svc, drafts, _, _, _, mock := newDraftFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	detail, err := svc.AddGroup(context.Background(), "est-1", "d-1",
		addReq("MAT101", 4,
			SlotPayload{Day: 1, Start: "08:00", End: "10:00", Room: "B-201"},
			SlotPayload{Day: 3, Start: "08:00", End: "10:00"}))
	require.NoError(t, err)
	require.Len(t, drafts.inserted, 2)
	assert.Equal(t, "MAT101", drafts.inserted[0].CourseCode)
	assert.Equal(t, 480, drafts.inserted[0].StartMinute)
	assert.Equal(t, 4, drafts.inserted[0].CreditValue())
	assert.Len(t, detail.Entries, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftServiceAddGroupConflict(t *testing.T) {
	svc, drafts, _, history, _, mock := newDraftFixture(t)
	drafts.entries = []models.DraftEntry{entryWithMeta(t, "FIS100", models.Monday, 540, 660, 3)}
	// A failing history provider proves later checks never run.
	history.err = appErrors.ErrUpstream
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1",
		addReq("MAT101", 4, SlotPayload{Day: 1, Start: "08:00", End: "10:00"}))
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	conflict, ok := appErr.Details.(*models.SlotConflict)
	require.True(t, ok)
	assert.Equal(t, "FIS100", conflict.CourseCode)
	assert.Empty(t, drafts.inserted)
	assert.Zero(t, history.calls)
}

func TestDraftServiceAddGroupCreditLimit(t *testing.T) {
	svc, drafts, _, history, _, mock := newDraftFixture(t)
	drafts.entries = []models.DraftEntry{
		entryWithMeta(t, "FIS100", models.Monday, 480, 600, 10),
		entryWithMeta(t, "FIS100", models.Wednesday, 480, 600, 10),
	}
	history.err = appErrors.ErrUpstream
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1",
		addReq("MAT101", 3, SlotPayload{Day: 5, Start: "08:00", End: "10:00"}))
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCreditLimit.Code, appErr.Code)
	detail, ok := appErr.Details.(models.CreditLimitDetail)
	require.True(t, ok)
	// Every stored meeting row contributes the credit weight in its metadata.
	assert.Equal(t, models.CreditLimitDetail{Current: 20, Adding: 3, Max: 20}, detail)
	assert.Zero(t, history.calls)
}

func TestDraftServiceAddGroupPrerequisiteUnmet(t *testing.T) {
	svc, _, _, history, _, mock := newDraftFixture(t)
	history.history = catalog.History{CompletedCourses: []string{"MAT101"}}
	mock.ExpectBegin()
	mock.ExpectRollback()

	req := addReq("ALG300", 3, SlotPayload{Day: 2, Start: "10:00", End: "12:00"})
	req.Prerequisites = []string{"FIS100"}

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1", req)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrerequisite.Code, appErr.Code)
	detail, ok := appErr.Details.(models.PrerequisiteDetail)
	require.True(t, ok)
	assert.Equal(t, []string{"FIS100"}, detail.MissingCourses)
	assert.Equal(t, 1, history.calls)
}

func TestDraftServiceAddGroupCreditTagUnmet(t *testing.T) {
	svc, drafts, _, history, _, mock := newDraftFixture(t)
	drafts.entries = []models.DraftEntry{entryWithMeta(t, "QUI110", models.Monday, 480, 600, 6)}
	// Credit tags read the draft itself, never the academic record.
	history.err = appErrors.ErrUpstream
	mock.ExpectBegin()
	mock.ExpectRollback()

	req := addReq("ALG300", 3, SlotPayload{Day: 2, Start: "10:00", End: "12:00"})
	req.Prerequisites = []string{"cre:30"}

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1", req)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrerequisite.Code, appErr.Code)
	detail, ok := appErr.Details.(models.PrerequisiteDetail)
	require.True(t, ok)
	assert.Equal(t, 30, detail.MinCredits)
	assert.Equal(t, 6, detail.Current)
	assert.Zero(t, history.calls)
}

func TestDraftServiceAddGroupCreditTagMetByDraftSum(t *testing.T) {
	_, drafts, schedules, history, notifier, mock := newDraftFixture(t)
	svc := NewDraftService(drafts, schedules, history, notifier, nil, nil, 40)
	drafts.entries = []models.DraftEntry{
		entryWithMeta(t, "FIS100", models.Monday, 480, 600, 20),
		entryWithMeta(t, "MAT201", models.Tuesday, 480, 600, 10),
		entryWithMeta(t, "QUI110", models.Wednesday, 480, 600, 5),
	}
	history.err = appErrors.ErrUpstream
	mock.ExpectBegin()
	mock.ExpectCommit()

	// 35 committed draft credits satisfy cre:30 regardless of the record.
	req := addReq("ALG300", 3, SlotPayload{Day: 5, Start: "10:00", End: "12:00"})
	req.Prerequisites = []string{"cre:30"}

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1", req)
	require.NoError(t, err)
	assert.Len(t, drafts.inserted, 1)
	assert.Zero(t, history.calls)
}

func TestDraftServiceAddGroupPrerequisiteSatisfied(t *testing.T) {
	svc, drafts, _, history, _, mock := newDraftFixture(t)
	drafts.entries = []models.DraftEntry{entryWithMeta(t, "QUI110", models.Monday, 480, 600, 8)}
	history.history = catalog.History{CompletedCourses: []string{"FIS100"}}
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := addReq("ALG300", 3, SlotPayload{Day: 2, Start: "10:00", End: "12:00"})
	req.Prerequisites = []string{"fis100", "cre:6"}

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1", req)
	require.NoError(t, err)
	assert.Len(t, drafts.inserted, 1)
	assert.Equal(t, 1, history.calls)
}

func TestDraftServiceAddGroupHistoryUnavailable(t *testing.T) {
	svc, drafts, _, history, _, mock := newDraftFixture(t)
	history.err = appErrors.ErrUpstream
	mock.ExpectBegin()
	mock.ExpectRollback()

	req := addReq("ALG300", 3, SlotPayload{Day: 2, Start: "10:00", End: "12:00"})
	req.Prerequisites = []string{"FIS100"}

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
	assert.Empty(t, drafts.inserted)
}

func TestDraftServiceAddGroupForbidden(t *testing.T) {
	svc, _, _, _, _, mock := newDraftFixture(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.AddGroup(context.Background(), "est-2", "d-1",
		addReq("MAT101", 4, SlotPayload{Day: 1, Start: "08:00", End: "10:00"}))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDraftServiceAddGroupBackToBackSlots(t *testing.T) {
	svc, drafts, _, _, _, mock := newDraftFixture(t)
	drafts.entries = []models.DraftEntry{entryWithMeta(t, "FIS100", models.Monday, 480, 600, 3)}
	mock.ExpectBegin()
	mock.ExpectCommit()

	// Starting exactly when the existing class ends is legal.
	_, err := svc.AddGroup(context.Background(), "est-1", "d-1",
		addReq("MAT101", 4, SlotPayload{Day: 1, Start: "10:00", End: "12:00"}))
	require.NoError(t, err)
	assert.Len(t, drafts.inserted, 1)
}

func TestDraftServiceAddGroupRejectsInvalidClock(t *testing.T) {
	svc, _, _, _, _, _ := newDraftFixture(t)

	_, err := svc.AddGroup(context.Background(), "est-1", "d-1",
		addReq("MAT101", 4, SlotPayload{Day: 1, Start: "25:00", End: "26:00"}))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDraftServiceApply(t *testing.T) {
	svc, drafts, schedules, _, notifier, _ := newDraftFixture(t)
	drafts.entries = []models.DraftEntry{
		entryWithMeta(t, "MAT101", models.Monday, 480, 600, 4),
		entryWithMeta(t, "FIS100", models.Tuesday, 600, 720, 3),
	}

	sched, err := svc.Apply(context.Background(), "est-1", "d-1")
	require.NoError(t, err)
	assert.Equal(t, "est-1", sched.StudentID)
	require.NotNil(t, schedules.created)
	assert.Len(t, schedules.groups, 2)

	require.Len(t, notifier.published, 1)
	assert.Equal(t, "schedule.applied", notifier.published[0].Event)
	assert.Equal(t, sched.ID, notifier.published[0].ScheduleID)
}

func TestDraftServiceApplyEmptyDraft(t *testing.T) {
	svc, _, _, _, notifier, _ := newDraftFixture(t)

	_, err := svc.Apply(context.Background(), "est-1", "d-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.published)
}

func TestDraftServiceExportCSV(t *testing.T) {
	svc, drafts, _, _, _, _ := newDraftFixture(t)
	drafts.entries = []models.DraftEntry{entryWithMeta(t, "MAT101", models.Monday, 480, 600, 4)}

	payload, contentType, err := svc.Export(context.Background(), "est-1", "d-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "MAT101")
	assert.Contains(t, string(payload), "08:00")
}

func TestDraftServiceExportUnsupportedFormat(t *testing.T) {
	svc, _, _, _, _, _ := newDraftFixture(t)

	_, _, err := svc.Export(context.Background(), "est-1", "d-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDraftServiceRemoveEntryNotFound(t *testing.T) {
	svc, _, _, _, _, _ := newDraftFixture(t)

	err := svc.RemoveEntry(context.Background(), "est-1", "d-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
