package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unihorario/registration-api/internal/models"
)

// DraftRepository manages persistence for schedule drafts and their entries.
// Mutating operations run inside a caller-provided transaction so the draft
// row can be locked for the duration of a validation.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository constructs a DraftRepository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// BeginTx opens a transaction for draft mutations.
func (r *DraftRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin draft tx: %w", err)
	}
	return tx, nil
}

// Create inserts a new draft.
func (r *DraftRepository) Create(ctx context.Context, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO drafts (id, student_id, term, name, description, created_at)
        VALUES (:id, :student_id, :term, :name, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, draft); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

// ListByStudent returns a page of a student's drafts, newest first.
func (r *DraftRepository) ListByStudent(ctx context.Context, studentID string, page, size int) ([]models.Draft, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, term, name, description, created_at
        FROM drafts WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, size, offset)
	drafts := []models.Draft{}
	if err := r.db.SelectContext(ctx, &drafts, query, studentID); err != nil {
		return nil, 0, fmt.Errorf("list drafts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM drafts WHERE student_id = $1", studentID); err != nil {
		return nil, 0, fmt.Errorf("count drafts: %w", err)
	}
	return drafts, total, nil
}

// FindByID fetches a draft by ID.
func (r *DraftRepository) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	const query = `SELECT id, student_id, term, name, description, created_at FROM drafts WHERE id = $1`
	var draft models.Draft
	if err := r.db.GetContext(ctx, &draft, query, id); err != nil {
		return nil, err
	}
	return &draft, nil
}

// FindByIDForUpdate fetches a draft inside tx, locking the row so concurrent
// additions to the same draft serialize.
func (r *DraftRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Draft, error) {
	const query = `SELECT id, student_id, term, name, description, created_at FROM drafts WHERE id = $1 FOR UPDATE`
	var draft models.Draft
	if err := tx.GetContext(ctx, &draft, query, id); err != nil {
		return nil, err
	}
	return &draft, nil
}

// ListEntries returns a draft's entries ordered by insertion time.
func (r *DraftRepository) ListEntries(ctx context.Context, draftID string) ([]models.DraftEntry, error) {
	entries := []models.DraftEntry{}
	const query = `SELECT id, draft_id, course_code, course_name, group_name, day, start_minute, end_minute, meta, created_at
        FROM draft_entries WHERE draft_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &entries, query, draftID); err != nil {
		return nil, fmt.Errorf("list draft entries: %w", err)
	}
	return entries, nil
}

// ListEntriesTx is ListEntries under the caller's transaction.
func (r *DraftRepository) ListEntriesTx(ctx context.Context, tx *sqlx.Tx, draftID string) ([]models.DraftEntry, error) {
	entries := []models.DraftEntry{}
	const query = `SELECT id, draft_id, course_code, course_name, group_name, day, start_minute, end_minute, meta, created_at
        FROM draft_entries WHERE draft_id = $1 ORDER BY created_at, id`
	if err := tx.SelectContext(ctx, &entries, query, draftID); err != nil {
		return nil, fmt.Errorf("list draft entries: %w", err)
	}
	return entries, nil
}

// InsertEntries writes the validated meeting rows for one group addition.
func (r *DraftRepository) InsertEntries(ctx context.Context, tx *sqlx.Tx, entries []models.DraftEntry) error {
	const query = `INSERT INTO draft_entries (id, draft_id, course_code, course_name, group_name, day, start_minute, end_minute, meta, created_at)
        VALUES (:id, :draft_id, :course_code, :course_name, :group_name, :day, :start_minute, :end_minute, :meta, :created_at)`
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, entries[i]); err != nil {
			return fmt.Errorf("insert draft entry: %w", err)
		}
	}
	return nil
}

// DeleteEntry removes one entry from a draft. Returns sql.ErrNoRows when the
// entry does not belong to the draft.
func (r *DraftRepository) DeleteEntry(ctx context.Context, draftID, entryID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM draft_entries WHERE id = $1 AND draft_id = $2", entryID, draftID)
	if err != nil {
		return fmt.Errorf("delete draft entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete draft entry: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a draft and cascades to its entries.
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM draft_entries WHERE draft_id = $1", id); err != nil {
		return fmt.Errorf("delete draft entries: %w", err)
	}
	result, err := r.db.ExecContext(ctx, "DELETE FROM drafts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
