package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihorario/registration-api/internal/catalog"
	"github.com/unihorario/registration-api/internal/middleware"
	"github.com/unihorario/registration-api/internal/models"
	"github.com/unihorario/registration-api/internal/notify"
	"github.com/unihorario/registration-api/internal/service"
)

type fakeDraftRepo struct {
	db      *sqlx.DB
	draft   models.Draft
	entries []models.DraftEntry
}

func (f *fakeDraftRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return f.db.BeginTxx(ctx, nil)
}

func (f *fakeDraftRepo) Create(ctx context.Context, draft *models.Draft) error {
	draft.ID = "d-created"
	return nil
}

func (f *fakeDraftRepo) ListByStudent(ctx context.Context, studentID string, page, size int) ([]models.Draft, int, error) {
	return []models.Draft{f.draft}, 1, nil
}

func (f *fakeDraftRepo) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	if id != f.draft.ID {
		return nil, sql.ErrNoRows
	}
	draft := f.draft
	return &draft, nil
}

func (f *fakeDraftRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Draft, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeDraftRepo) ListEntries(ctx context.Context, draftID string) ([]models.DraftEntry, error) {
	return f.entries, nil
}

func (f *fakeDraftRepo) ListEntriesTx(ctx context.Context, tx *sqlx.Tx, draftID string) ([]models.DraftEntry, error) {
	return f.entries, nil
}

func (f *fakeDraftRepo) InsertEntries(ctx context.Context, tx *sqlx.Tx, entries []models.DraftEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeDraftRepo) DeleteEntry(ctx context.Context, draftID, entryID string) error {
	return sql.ErrNoRows
}

func (f *fakeDraftRepo) Delete(ctx context.Context, id string) error {
	return nil
}

type fakeScheduleRepo struct{}

func (f *fakeScheduleRepo) Create(ctx context.Context, sched *models.StudentSchedule, groups []models.ScheduledGroup) error {
	sched.ID = "s-created"
	return nil
}

type fakeHistoryProvider struct{}

func (f *fakeHistoryProvider) FetchHistory(ctx context.Context, studentID string) (catalog.History, error) {
	return catalog.History{}, nil
}

type fakeNotifier struct{}

func (f *fakeNotifier) Publish(ctx context.Context, msg notify.Message) error { return nil }

func newDraftHandler(t *testing.T) (*DraftHandler, *fakeDraftRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := &fakeDraftRepo{
		db:    sqlx.NewDb(db, "sqlmock"),
		draft: models.Draft{ID: "d-1", StudentID: "est-1", Name: "Fall plan", CreatedAt: time.Now()},
	}
	svc := service.NewDraftService(repo, &fakeScheduleRepo{}, &fakeHistoryProvider{}, &fakeNotifier{}, nil, nil, 20)
	return NewDraftHandler(svc, nil), repo, mock
}

func authedContext(t *testing.T, rec *httptest.ResponseRecorder, method, target string, body interface{}) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(rec)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextStudentKey, &models.StudentClaims{StudentID: "est-1"})
	return c
}

func TestDraftHandlerAddGroup(t *testing.T) {
	handler, repo, mock := newDraftHandler(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := service.AddGroupRequest{
		CourseCode: "MAT101",
		GroupName:  "G1",
		Credits:    4,
		Schedule:   []service.SlotPayload{{Day: 1, Start: "08:00", End: "10:00"}},
	}
	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/drafts/d-1/groups", req)
	c.Params = gin.Params{{Key: "id", Value: "d-1"}}

	handler.AddGroup(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.entries, 1)
}

func TestDraftHandlerAddGroupConflict(t *testing.T) {
	handler, repo, mock := newDraftHandler(t)
	repo.entries = []models.DraftEntry{{
		ID: "e-1", DraftID: "d-1", CourseCode: "FIS100",
		Day: models.Monday, StartMinute: 540, EndMinute: 660,
	}}
	mock.ExpectBegin()
	mock.ExpectRollback()

	req := service.AddGroupRequest{
		CourseCode: "MAT101",
		Credits:    4,
		Schedule:   []service.SlotPayload{{Day: 1, Start: "08:00", End: "10:00"}},
	}
	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/drafts/d-1/groups", req)
	c.Params = gin.Params{{Key: "id", Value: "d-1"}}

	handler.AddGroup(c)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				CourseCode string `json:"course_code"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
	assert.Equal(t, "FIS100", envelope.Error.Details.CourseCode)
}

func TestDraftHandlerGetNotFound(t *testing.T) {
	handler, _, _ := newDraftHandler(t)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodGet, "/drafts/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftHandlerApply(t *testing.T) {
	handler, repo, _ := newDraftHandler(t)
	repo.entries = []models.DraftEntry{{
		ID: "e-1", DraftID: "d-1", CourseCode: "MAT101",
		Day: models.Monday, StartMinute: 480, EndMinute: 600,
	}}

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/drafts/d-1/apply", nil)
	c.Params = gin.Params{{Key: "id", Value: "d-1"}}

	handler.Apply(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDraftHandlerExportCSV(t *testing.T) {
	handler, repo, _ := newDraftHandler(t)
	repo.entries = []models.DraftEntry{{
		ID: "e-1", DraftID: "d-1", CourseCode: "MAT101", CourseName: "Calculus I",
		Day: models.Monday, StartMinute: 480, EndMinute: 600,
	}}

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodGet, "/drafts/d-1/export?format=csv", nil)
	c.Params = gin.Params{{Key: "id", Value: "d-1"}}

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "MAT101")
}
