package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Draft is a student's in-progress candidate schedule. Entries accumulate one
// row per class slot; the add-group validation keeps them conflict-free and
// under the credit ceiling.
type Draft struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Term        *int      `db:"term" json:"term,omitempty"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DraftEntry is one weekly meeting committed to a draft. Meta carries the
// group's credit weight and prerequisite tags as JSON.
type DraftEntry struct {
	ID          string         `db:"id" json:"id"`
	DraftID     string         `db:"draft_id" json:"draft_id"`
	CourseCode  string         `db:"course_code" json:"course_code"`
	CourseName  string         `db:"course_name" json:"course_name,omitempty"`
	GroupName   string         `db:"group_name" json:"group_name,omitempty"`
	Day         Weekday        `db:"day" json:"day"`
	StartMinute int            `db:"start_minute" json:"start_minute"`
	EndMinute   int            `db:"end_minute" json:"end_minute"`
	Meta        types.JSONText `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// EntryMeta is the decoded shape of DraftEntry.Meta.
type EntryMeta struct {
	Credits       int      `json:"credits"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// CreditValue decodes the credit weight stored on the entry. Absent or
// malformed metadata counts as zero credits.
func (e DraftEntry) CreditValue() int {
	if len(e.Meta) == 0 {
		return 0
	}
	var meta EntryMeta
	if err := json.Unmarshal(e.Meta, &meta); err != nil {
		return 0
	}
	if meta.Credits < 0 {
		return 0
	}
	return meta.Credits
}

// DraftDetail bundles a draft with its entries for API responses.
type DraftDetail struct {
	Draft
	Entries []DraftEntry `json:"entries"`
}

// SlotConflict identifies the existing draft entry that collides with a
// proposed addition.
type SlotConflict struct {
	CourseCode  string  `json:"course_code"`
	GroupName   string  `json:"group_name,omitempty"`
	Day         Weekday `json:"day"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
}

// CreditLimitDetail reports the numbers behind a credit ceiling rejection.
type CreditLimitDetail struct {
	Current int `json:"current"`
	Adding  int `json:"adding"`
	Max     int `json:"max"`
}

// PrerequisiteDetail reports why a prerequisite check failed.
type PrerequisiteDetail struct {
	MissingCourses []string `json:"missing_courses,omitempty"`
	MinCredits     int      `json:"min_credits,omitempty"`
	Current        int      `json:"current_credits"`
}
