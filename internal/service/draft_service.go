package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/unihorario/registration-api/internal/catalog"
	"github.com/unihorario/registration-api/internal/models"
	"github.com/unihorario/registration-api/internal/notify"
	"github.com/unihorario/registration-api/internal/schedule"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
	"github.com/unihorario/registration-api/pkg/export"
)

type draftRepository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	Create(ctx context.Context, draft *models.Draft) error
	ListByStudent(ctx context.Context, studentID string, page, size int) ([]models.Draft, int, error)
	FindByID(ctx context.Context, id string) (*models.Draft, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Draft, error)
	ListEntries(ctx context.Context, draftID string) ([]models.DraftEntry, error)
	ListEntriesTx(ctx context.Context, tx *sqlx.Tx, draftID string) ([]models.DraftEntry, error)
	InsertEntries(ctx context.Context, tx *sqlx.Tx, entries []models.DraftEntry) error
	DeleteEntry(ctx context.Context, draftID, entryID string) error
	Delete(ctx context.Context, id string) error
}

type scheduleRepository interface {
	Create(ctx context.Context, sched *models.StudentSchedule, groups []models.ScheduledGroup) error
}

type historyProvider interface {
	FetchHistory(ctx context.Context, studentID string) (catalog.History, error)
}

type notificationPublisher interface {
	Publish(ctx context.Context, msg notify.Message) error
}

// CreateDraftRequest holds payload for opening a new draft.
type CreateDraftRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	Term        *int   `json:"term" validate:"omitempty,min=1,max=20"`
}

// SlotPayload is one weekly meeting in an add-group request. Times are
// "HH:MM" clock values.
type SlotPayload struct {
	Day   int    `json:"day" validate:"required,min=1,max=7"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
	Room  string `json:"room"`
}

// AddGroupRequest holds payload for adding a course group to a draft.
type AddGroupRequest struct {
	CourseCode    string        `json:"course_code" validate:"required,max=40"`
	CourseName    string        `json:"course_name" validate:"max=200"`
	GroupName     string        `json:"group_name" validate:"max=40"`
	Credits       int           `json:"credits" validate:"min=0,max=30"`
	Prerequisites []string      `json:"prerequisites" validate:"max=20"`
	Schedule      []SlotPayload `json:"schedule" validate:"required,min=1,dive"`
}

// DraftService manages candidate schedules. Every mutation of a draft's
// entries runs under a row lock so concurrent additions to the same draft
// validate against a consistent view.
type DraftService struct {
	drafts     draftRepository
	schedules  scheduleRepository
	history    historyProvider
	notifier   notificationPublisher
	validator  *validator.Validate
	logger     *zap.Logger
	maxCredits int
}

// NewDraftService constructs the draft service.
func NewDraftService(drafts draftRepository, schedules scheduleRepository, history historyProvider, notifier notificationPublisher, validate *validator.Validate, logger *zap.Logger, maxCredits int) *DraftService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCredits <= 0 {
		maxCredits = schedule.DefaultMaxCredits
	}
	return &DraftService{
		drafts:     drafts,
		schedules:  schedules,
		history:    history,
		notifier:   notifier,
		validator:  validate,
		logger:     logger,
		maxCredits: maxCredits,
	}
}

// Create opens an empty draft for the student.
func (s *DraftService) Create(ctx context.Context, studentID string, req CreateDraftRequest) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}

	draft := &models.Draft{
		StudentID:   studentID,
		Term:        req.Term,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft")
	}
	s.logger.Sugar().Infow("draft created", "draft_id", draft.ID, "student_id", studentID)
	return draft, nil
}

// List returns the student's drafts with pagination metadata.
func (s *DraftService) List(ctx context.Context, studentID string, page, size int) ([]models.Draft, *models.Pagination, error) {
	drafts, total, err := s.drafts.ListByStudent(ctx, studentID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drafts")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return drafts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a draft with its entries.
func (s *DraftService) Get(ctx context.Context, studentID, draftID string) (*models.DraftDetail, error) {
	draft, err := s.loadOwned(ctx, studentID, draftID)
	if err != nil {
		return nil, err
	}
	entries, err := s.drafts.ListEntries(ctx, draftID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft entries")
	}
	return &models.DraftDetail{Draft: *draft, Entries: entries}, nil
}

// Delete removes a draft and all its entries.
func (s *DraftService) Delete(ctx context.Context, studentID, draftID string) error {
	if _, err := s.loadOwned(ctx, studentID, draftID); err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete draft")
	}
	return nil
}

// AddGroup validates a course group against the draft and commits its
// meetings. Checks run in fixed order: slot conflicts, then the credit
// ceiling, then prerequisites. The first failure reports, later checks do
// not run.
func (s *DraftService) AddGroup(ctx context.Context, studentID, draftID string, req AddGroupRequest) (*models.DraftDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	slots, err := parseSlots(req.Schedule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	tx, err := s.drafts.BeginTx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer tx.Rollback()

	draft, err := s.drafts.FindByIDForUpdate(ctx, tx, draftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	if draft.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "draft belongs to another student")
	}

	entries, err := s.drafts.ListEntriesTx(ctx, tx, draftID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft entries")
	}

	if conflict := findConflict(entries, slots); conflict != nil {
		return nil, appErrors.WithDetails(appErrors.ErrConflict,
			fmt.Sprintf("schedule conflict with %s", conflict.CourseCode), conflict)
	}

	current := committedCredits(entries)
	if current+req.Credits > s.maxCredits {
		return nil, appErrors.WithDetails(appErrors.ErrCreditLimit,
			fmt.Sprintf("adding %d credits exceeds the limit of %d", req.Credits, s.maxCredits),
			models.CreditLimitDetail{Current: current, Adding: req.Credits, Max: s.maxCredits})
	}

	if err := s.checkPrerequisites(ctx, studentID, req.Prerequisites, current); err != nil {
		return nil, err
	}

	meta, err := json.Marshal(models.EntryMeta{Credits: req.Credits, Prerequisites: req.Prerequisites})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode entry metadata")
	}

	newEntries := make([]models.DraftEntry, 0, len(slots))
	for _, slot := range slots {
		newEntries = append(newEntries, models.DraftEntry{
			DraftID:     draftID,
			CourseCode:  req.CourseCode,
			CourseName:  req.CourseName,
			GroupName:   req.GroupName,
			Day:         slot.Day,
			StartMinute: slot.StartMinute,
			EndMinute:   slot.EndMinute,
			Meta:        types.JSONText(meta),
		})
	}
	if err := s.drafts.InsertEntries(ctx, tx, newEntries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft entries")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit draft entries")
	}

	s.logger.Sugar().Infow("group added to draft",
		"draft_id", draftID, "course_code", req.CourseCode, "group", req.GroupName, "credits", req.Credits)
	return &models.DraftDetail{Draft: *draft, Entries: append(entries, newEntries...)}, nil
}

// RemoveEntry deletes one meeting from a draft.
func (s *DraftService) RemoveEntry(ctx context.Context, studentID, draftID, entryID string) error {
	if _, err := s.loadOwned(ctx, studentID, draftID); err != nil {
		return err
	}
	if err := s.drafts.DeleteEntry(ctx, draftID, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "draft entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete draft entry")
	}
	return nil
}

// Apply freezes a draft into a finalized schedule and announces it. The
// draft itself survives so the student can keep iterating.
func (s *DraftService) Apply(ctx context.Context, studentID, draftID string) (*models.StudentSchedule, error) {
	detail, err := s.Get(ctx, studentID, draftID)
	if err != nil {
		return nil, err
	}
	if len(detail.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "draft has no entries to apply")
	}

	sched := &models.StudentSchedule{
		StudentID: studentID,
		Term:      detail.Term,
		Name:      detail.Name,
	}
	groups := make([]models.ScheduledGroup, 0, len(detail.Entries))
	for _, entry := range detail.Entries {
		groups = append(groups, models.ScheduledGroup{
			CourseCode:  entry.CourseCode,
			CourseName:  entry.CourseName,
			GroupName:   entry.GroupName,
			Day:         entry.Day,
			StartMinute: entry.StartMinute,
			EndMinute:   entry.EndMinute,
		})
	}
	if err := s.schedules.Create(ctx, sched, groups); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule")
	}

	if s.notifier != nil {
		msg := notify.Message{
			Event:      "schedule.applied",
			StudentID:  studentID,
			ScheduleID: sched.ID,
			DraftID:    draftID,
			Name:       sched.Name,
		}
		if err := s.notifier.Publish(ctx, msg); err != nil {
			s.logger.Sugar().Warnw("failed to publish schedule notification", "schedule_id", sched.ID, "error", err)
		}
	}

	s.logger.Sugar().Infow("draft applied", "draft_id", draftID, "schedule_id", sched.ID, "student_id", studentID)
	return sched, nil
}

// Export renders the draft timetable in the requested format, "csv" or
// "pdf".
func (s *DraftService) Export(ctx context.Context, studentID, draftID, format string) ([]byte, string, error) {
	detail, err := s.Get(ctx, studentID, draftID)
	if err != nil {
		return nil, "", err
	}

	table := export.Timetable{Title: detail.Name, Rows: make([]export.TimetableRow, 0, len(detail.Entries))}
	for _, entry := range detail.Entries {
		table.Rows = append(table.Rows, export.TimetableRow{
			CourseCode: entry.CourseCode,
			CourseName: entry.CourseName,
			GroupName:  entry.GroupName,
			Day:        entry.Day.String(),
			Start:      schedule.FormatMinutes(entry.StartMinute),
			End:        schedule.FormatMinutes(entry.EndMinute),
		})
	}

	switch format {
	case "csv", "":
		payload, err := export.RenderCSV(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.RenderPDF(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// checkPrerequisites evaluates the addition's prerequisite tags. Credit
// tags compare against the draft's own credit sum before the addition, so
// they never need the academic record. Course tags do: a failing history
// lookup rejects the addition, missing evidence is never treated as
// satisfied prerequisites.
func (s *DraftService) checkPrerequisites(ctx context.Context, studentID string, tags []string, draftCredits int) error {
	parsed := schedule.ParsePrerequisites(tags)
	if len(parsed) == 0 {
		return nil
	}

	minCredits := 0
	courses := make([]string, 0, len(parsed))
	for _, prereq := range parsed {
		if prereq.CourseCode != "" {
			courses = append(courses, prereq.CourseCode)
			continue
		}
		if prereq.MinCredits > minCredits {
			minCredits = prereq.MinCredits
		}
	}

	if draftCredits < minCredits {
		return appErrors.WithDetails(appErrors.ErrPrerequisite, "prerequisites not met",
			models.PrerequisiteDetail{Current: draftCredits, MinCredits: minCredits})
	}
	if len(courses) == 0 {
		return nil
	}

	history, err := s.history.FetchHistory(ctx, studentID)
	if err != nil {
		return appErrors.FromError(err)
	}

	detail := models.PrerequisiteDetail{Current: draftCredits}
	for _, code := range courses {
		if !history.Completed(code) {
			detail.MissingCourses = append(detail.MissingCourses, code)
		}
	}
	if len(detail.MissingCourses) > 0 {
		return appErrors.WithDetails(appErrors.ErrPrerequisite, "prerequisites not met", detail)
	}
	return nil
}

func (s *DraftService) loadOwned(ctx context.Context, studentID, draftID string) (*models.Draft, error) {
	draft, err := s.drafts.FindByID(ctx, draftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	if draft.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "draft belongs to another student")
	}
	return draft, nil
}

func parseSlots(payload []SlotPayload) ([]models.ClassSlot, error) {
	slots := make([]models.ClassSlot, 0, len(payload))
	for _, item := range payload {
		start, err := schedule.ParseMinutes(item.Start)
		if err != nil {
			return nil, err
		}
		end, err := schedule.ParseMinutes(item.End)
		if err != nil {
			return nil, err
		}
		if start >= end {
			return nil, fmt.Errorf("slot ends before it starts (%s-%s)", item.Start, item.End)
		}
		slots = append(slots, models.ClassSlot{
			Day:         models.Weekday(item.Day),
			StartMinute: start,
			EndMinute:   end,
			Room:        item.Room,
		})
	}
	// Proposed meetings must also avoid each other.
	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			if schedule.Overlaps(slots[i], slots[j]) {
				return nil, fmt.Errorf("proposed meetings overlap on %s", slots[i].Day)
			}
		}
	}
	return slots, nil
}

// findConflict returns the first committed entry colliding with any proposed
// slot, scanning entries in stored order.
func findConflict(entries []models.DraftEntry, slots []models.ClassSlot) *models.SlotConflict {
	for _, entry := range entries {
		existing := models.ClassSlot{Day: entry.Day, StartMinute: entry.StartMinute, EndMinute: entry.EndMinute}
		for _, slot := range slots {
			if schedule.Overlaps(existing, slot) {
				return &models.SlotConflict{
					CourseCode:  entry.CourseCode,
					GroupName:   entry.GroupName,
					Day:         entry.Day,
					StartMinute: entry.StartMinute,
					EndMinute:   entry.EndMinute,
				}
			}
		}
	}
	return nil
}

// committedCredits sums the credit weight carried by every stored meeting
// row. Each row reads its own metadata, malformed or absent values count as
// zero.
func committedCredits(entries []models.DraftEntry) int {
	total := 0
	for _, entry := range entries {
		total += entry.CreditValue()
	}
	return total
}
