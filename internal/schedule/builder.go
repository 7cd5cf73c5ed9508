package schedule

import (
	"sort"

	"github.com/unihorario/registration-api/internal/models"
)

// DefaultMaxCredits is the credit ceiling applied when a request does not
// carry one.
const DefaultMaxCredits = 20

// Options governs a single recommendation run. Both values are per-request
// parameters, never process-global state.
type Options struct {
	MaxCredits       int
	IncludeElectives bool
}

// Build constructs a recommended schedule from a catalog snapshot: filter
// eligible courses, rank required before electives, admit greedily under the
// credit ceiling, then assign the first conflict-free group per course.
// Courses admitted by credits but left without a group are reported as
// skipped and do not count toward the returned total. The run is
// deterministic for identical input.
func Build(catalog []models.Course, opts Options) models.RecommendationOutcome {
	if opts.MaxCredits <= 0 {
		opts.MaxCredits = DefaultMaxCredits
	}

	required, electives := partition(catalog, opts.IncludeElectives)
	admitted := selectByCredits(required, electives, opts.MaxCredits)

	outcome := models.RecommendationOutcome{
		Courses:             make([]models.SelectionResult, 0, len(admitted)),
		SkippedForConflicts: make([]string, 0),
		MaxCredits:          opts.MaxCredits,
	}

	var occupied []models.ClassSlot
	for _, course := range admitted {
		group, ok := chooseGroup(course, occupied)
		if !ok {
			// No conflict-free group: the course is skipped and its
			// provisionally admitted credits are not reclaimed.
			outcome.SkippedForConflicts = append(outcome.SkippedForConflicts, course.Code)
			continue
		}
		occupied = append(occupied, group.Slots...)
		outcome.TotalCredits += course.Credits
		outcome.Courses = append(outcome.Courses, models.SelectionResult{
			CourseCode: course.Code,
			CourseName: course.Name,
			Credits:    course.Credits,
			Elective:   course.Elective,
			Term:       course.Term,
			GroupCode:  group.Code,
			Slots:      group.Slots,
		})
	}
	return outcome
}

// Available reports whether a course is a legal candidate: positive credits
// and at least one active group with seats and a non-empty slot list.
func Available(course models.Course) bool {
	if course.Credits <= 0 {
		return false
	}
	for _, group := range course.Groups {
		if selectable(group) {
			return true
		}
	}
	return false
}

func selectable(group models.Group) bool {
	return group.Active && group.Seats > 0 && len(group.Slots) > 0
}

// partition splits eligible courses into required and elective sets, each
// ordered by (term ascending, missing term last, code ascending).
func partition(catalog []models.Course, includeElectives bool) (required, electives []models.Course) {
	for _, course := range catalog {
		if !Available(course) {
			continue
		}
		if course.Elective {
			electives = append(electives, course)
		} else {
			required = append(required, course)
		}
	}
	sortByPriority(required)
	sortByPriority(electives)
	if !includeElectives {
		electives = nil
	}
	return required, electives
}

func sortByPriority(courses []models.Course) {
	sort.SliceStable(courses, func(i, j int) bool {
		ti, tj := termRank(courses[i].Term), termRank(courses[j].Term)
		if ti != tj {
			return ti < tj
		}
		return courses[i].Code < courses[j].Code
	})
}

func termRank(term *int) int {
	if term == nil {
		return int(^uint(0) >> 1)
	}
	return *term
}

// selectByCredits greedily admits courses, required partition first, without
// exceeding the ceiling. First-fit: a course that does not fit is skipped
// permanently, no backtracking or swapping.
func selectByCredits(required, electives []models.Course, maxCredits int) []models.Course {
	var selected []models.Course
	total := 0
	admit := func(courses []models.Course) {
		for _, course := range courses {
			if total+course.Credits > maxCredits {
				continue
			}
			selected = append(selected, course)
			total += course.Credits
		}
	}
	admit(required)
	admit(electives)
	return selected
}

// chooseGroup scans the course's groups in stored order and returns the first
// selectable one whose every slot avoids the occupied set.
func chooseGroup(course models.Course, occupied []models.ClassSlot) (models.Group, bool) {
	for _, group := range course.Groups {
		if !selectable(group) {
			continue
		}
		conflict := false
		for _, slot := range group.Slots {
			if OverlapsAny(slot, occupied) {
				conflict = true
				break
			}
		}
		if !conflict {
			return group, true
		}
	}
	return models.Group{}, false
}
