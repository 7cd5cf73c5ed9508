package models

import "time"

// StudentSchedule is a finalized schedule produced by applying a draft.
type StudentSchedule struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Term      *int      `db:"term" json:"term,omitempty"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ScheduledGroup is one meeting copied from a draft entry when the draft is
// applied.
type ScheduledGroup struct {
	ID          string  `db:"id" json:"id"`
	ScheduleID  string  `db:"schedule_id" json:"schedule_id"`
	CourseCode  string  `db:"course_code" json:"course_code"`
	CourseName  string  `db:"course_name" json:"course_name,omitempty"`
	GroupName   string  `db:"group_name" json:"group_name,omitempty"`
	Day         Weekday `db:"day" json:"day"`
	StartMinute int     `db:"start_minute" json:"start_minute"`
	EndMinute   int     `db:"end_minute" json:"end_minute"`
}

// StudentScheduleDetail bundles a schedule with its groups.
type StudentScheduleDetail struct {
	StudentSchedule
	Groups []ScheduledGroup `json:"groups"`
}
