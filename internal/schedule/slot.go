package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unihorario/registration-api/internal/models"
)

// Overlaps reports whether two weekly slots collide. Slots on different days
// never overlap; on the same day the half-open minute ranges must intersect,
// so back-to-back classes (a.End == b.Start) are legal.
func Overlaps(a, b models.ClassSlot) bool {
	if a.Day != b.Day {
		return false
	}
	return a.StartMinute < b.EndMinute && b.StartMinute < a.EndMinute
}

// OverlapsAny reports whether the slot collides with any slot in the set.
func OverlapsAny(slot models.ClassSlot, occupied []models.ClassSlot) bool {
	for _, other := range occupied {
		if Overlaps(slot, other) {
			return true
		}
	}
	return false
}

// FormatMinutes renders minutes-from-midnight as HH:MM.
func FormatMinutes(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseMinutes converts an "HH:MM" clock value into minutes from midnight.
func ParseMinutes(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value %q out of range", value)
	}
	return hour*60 + minute, nil
}
