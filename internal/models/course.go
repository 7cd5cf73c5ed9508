package models

import (
	"fmt"
	"strings"
)

// Weekday enumerates the seven days of the week, Monday = 1.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = map[Weekday]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

var weekdayIndex = map[string]Weekday{
	"MONDAY":    Monday,
	"TUESDAY":   Tuesday,
	"WEDNESDAY": Wednesday,
	"THURSDAY":  Thursday,
	"FRIDAY":    Friday,
	"SATURDAY":  Saturday,
	"SUNDAY":    Sunday,
}

// String returns the canonical upper-case day name.
func (w Weekday) String() string {
	if name, ok := weekdayNames[w]; ok {
		return name
	}
	return fmt.Sprintf("DAY_%d", int(w))
}

// Valid reports whether the weekday is within the 1-7 range.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// ParseWeekday resolves a day name into a Weekday. Zero means unknown.
func ParseWeekday(name string) Weekday {
	return weekdayIndex[strings.ToUpper(strings.TrimSpace(name))]
}

// ClassSlot is one weekly recurring meeting of a group. Minutes are counted
// from midnight; the range is half-open [StartMinute, EndMinute).
type ClassSlot struct {
	Day         Weekday `json:"day"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
	Room        string  `json:"room,omitempty"`
}

// Group is one offering of a course with its own seats and meeting slots.
// Slot and group ordering follows the catalog source and is the tie-break
// order for first-match selection.
type Group struct {
	Code   string      `json:"code"`
	Active bool        `json:"active"`
	Seats  int         `json:"seats"`
	Slots  []ClassSlot `json:"slots"`
}

// Course is a catalog entry. Term is a nullable ordering hint (academic
// semester); courses without a term sort after those with one.
type Course struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Credits  int     `json:"credits"`
	Elective bool    `json:"elective"`
	Term     *int    `json:"term,omitempty"`
	Groups   []Group `json:"groups"`
}
