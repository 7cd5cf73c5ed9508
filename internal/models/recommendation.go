package models

// SelectionResult is one accepted course within a recommendation: the chosen
// group and the slots it contributed to the occupied set.
type SelectionResult struct {
	CourseCode string      `json:"course_code"`
	CourseName string      `json:"course_name"`
	Credits    int         `json:"credits"`
	Elective   bool        `json:"elective"`
	Term       *int        `json:"term,omitempty"`
	GroupCode  string      `json:"group_code"`
	Slots      []ClassSlot `json:"slots"`
}

// RecommendationOutcome aggregates a full batch recommendation run. Courses
// that were admitted by credits but received no conflict-free group appear in
// SkippedForConflicts and contribute nothing to TotalCredits.
type RecommendationOutcome struct {
	Courses             []SelectionResult `json:"courses"`
	SkippedForConflicts []string          `json:"skipped_for_conflicts"`
	TotalCredits        int               `json:"total_credits"`
	MaxCredits          int               `json:"max_credits"`
}
