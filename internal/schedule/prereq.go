package schedule

import (
	"strconv"
	"strings"
)

// Prerequisite is one parsed requirement tag attached to a group addition.
// Exactly one of the fields is set: MinCredits for "cre:N" tags, CourseCode
// for tags naming a prior course.
type Prerequisite struct {
	MinCredits int
	CourseCode string
}

// ParsePrerequisites decodes raw tags. A "cre:N" tag (case-insensitive)
// requires N accumulated credits; any other non-empty tag names a completed
// course. Unparsable tags are dropped, never treated as failing.
func ParsePrerequisites(tags []string) []Prerequisite {
	var parsed []Prerequisite
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(tag), "cre:") {
			value, err := strconv.Atoi(strings.TrimSpace(tag[len("cre:"):]))
			if err != nil || value < 0 {
				continue
			}
			parsed = append(parsed, Prerequisite{MinCredits: value})
			continue
		}
		parsed = append(parsed, Prerequisite{CourseCode: tag})
	}
	return parsed
}
