package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrerequisitesCreditTags(t *testing.T) {
	parsed := ParsePrerequisites([]string{"cre:12", "CRE:30", "cre: 45 "})
	assert.Equal(t, []Prerequisite{{MinCredits: 12}, {MinCredits: 30}, {MinCredits: 45}}, parsed)
}

func TestParsePrerequisitesCourseTags(t *testing.T) {
	parsed := ParsePrerequisites([]string{"MAT101", " FIS201 "})
	assert.Equal(t, []Prerequisite{{CourseCode: "MAT101"}, {CourseCode: "FIS201"}}, parsed)
}

func TestParsePrerequisitesDropsUnparsable(t *testing.T) {
	parsed := ParsePrerequisites([]string{"cre:abc", "cre:", "cre:-3", "", "   "})
	assert.Empty(t, parsed)
}

func TestParsePrerequisitesMixed(t *testing.T) {
	parsed := ParsePrerequisites([]string{"cre:60", "MAT101", "cre:x", "QUI200"})
	assert.Equal(t, []Prerequisite{{MinCredits: 60}, {CourseCode: "MAT101"}, {CourseCode: "QUI200"}}, parsed)
}
