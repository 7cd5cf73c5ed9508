package catalog

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/unihorario/registration-api/internal/models"
)

// Normalize converts the heterogeneous payload served by the courses
// collaborator into the uniform catalog model. The source may be a flat list
// of courses, a pensum object carrying a "materias" mapping, or a list
// holding a single pensum object; groups may be a mapping or a sequence and
// slot times may be integer hours or "HH:MM" strings. A structurally
// unrecognizable payload yields an empty catalog, never an error: the engine
// degrades to "no courses available".
func Normalize(raw []byte) []models.Course {
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return []models.Course{}
	}
	return normalizeValue(data)
}

func normalizeValue(data interface{}) []models.Course {
	switch v := data.(type) {
	case []interface{}:
		if len(v) == 1 {
			if obj, ok := v[0].(map[string]interface{}); ok {
				if _, has := obj["materias"]; has {
					return normalizePensum(obj)
				}
			}
		}
		courses := make([]models.Course, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if course, ok := normalizeCourse(obj); ok {
				courses = append(courses, course)
			}
		}
		return courses
	case map[string]interface{}:
		if _, has := v["materias"]; has {
			return normalizePensum(v)
		}
		if course, ok := normalizeCourse(v); ok {
			return []models.Course{course}
		}
		return []models.Course{}
	default:
		return []models.Course{}
	}
}

func normalizePensum(obj map[string]interface{}) []models.Course {
	materias, ok := obj["materias"].(map[string]interface{})
	if !ok {
		return []models.Course{}
	}
	keys := make([]string, 0, len(materias))
	for key := range materias {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	courses := make([]models.Course, 0, len(keys))
	for _, key := range keys {
		entry, ok := materias[key].(map[string]interface{})
		if !ok {
			continue
		}
		if course, ok := normalizeCourse(entry); ok {
			courses = append(courses, course)
		}
	}
	return courses
}

func normalizeCourse(obj map[string]interface{}) (models.Course, bool) {
	code := stringField(obj, "codigo", "code", "id")
	if code == "" {
		return models.Course{}, false
	}
	course := models.Course{
		Code:     code,
		Name:     stringField(obj, "nombre", "name", "materia"),
		Credits:  intField(obj, "creditos", "credits"),
		Elective: boolField(obj, "isElectiva", "elective"),
		Term:     optionalIntField(obj, "semestre", "semester", "term"),
	}

	groupsRaw, ok := obj["grupos"]
	if !ok {
		groupsRaw = obj["groups"]
	}
	course.Groups = normalizeGroups(groupsRaw)
	return course, true
}

// normalizeGroups accepts both shapes the source emits: a mapping keyed by
// group code (keys sorted for reproducible first-match selection) or a
// sequence of group objects carrying their own code.
func normalizeGroups(raw interface{}) []models.Group {
	switch v := raw.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		groups := make([]models.Group, 0, len(keys))
		for _, key := range keys {
			obj, ok := v[key].(map[string]interface{})
			if !ok {
				continue
			}
			groups = append(groups, normalizeGroup(key, obj))
		}
		return groups
	case []interface{}:
		groups := make([]models.Group, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			code := stringField(obj, "nombre", "group_name", "codigo", "code")
			groups = append(groups, normalizeGroup(code, obj))
		}
		return groups
	default:
		return nil
	}
}

func normalizeGroup(code string, obj map[string]interface{}) models.Group {
	group := models.Group{
		Code: code,
		// State code 0 or absent means open for enrollment.
		Active: intField(obj, "estado", "state") == 0,
		// Absent seat counts stay 0: absence is never unlimited.
		Seats: intField(obj, "disponible", "seats"),
	}

	classesRaw, ok := obj["clases"]
	if !ok {
		if classesRaw, ok = obj["horario"]; !ok {
			classesRaw = obj["schedule"]
		}
	}
	classes, ok := classesRaw.([]interface{})
	if !ok {
		return group
	}
	for _, item := range classes {
		slotObj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if slot, ok := normalizeSlot(slotObj); ok {
			group.Slots = append(group.Slots, slot)
		}
	}
	return group
}

// normalizeSlot parses one weekly meeting. Slots with a missing or
// unparsable day or time are dropped without failing the group.
func normalizeSlot(obj map[string]interface{}) (models.ClassSlot, bool) {
	day, ok := parseDay(firstField(obj, "dia", "day"))
	if !ok {
		return models.ClassSlot{}, false
	}
	start, ok := parseClock(firstField(obj, "horaInicio", "hora_inicio", "start"))
	if !ok {
		return models.ClassSlot{}, false
	}
	end, ok := parseClock(firstField(obj, "horaFin", "hora_fin", "end"))
	if !ok {
		return models.ClassSlot{}, false
	}
	if start >= end {
		return models.ClassSlot{}, false
	}
	return models.ClassSlot{
		Day:         day,
		StartMinute: start,
		EndMinute:   end,
		Room:        stringField(obj, "salon", "room"),
	}, true
}

func parseDay(raw interface{}) (models.Weekday, bool) {
	switch v := raw.(type) {
	case float64:
		day := models.Weekday(int(v))
		return day, day.Valid()
	case string:
		trimmed := strings.TrimSpace(v)
		if n, err := strconv.Atoi(trimmed); err == nil {
			day := models.Weekday(n)
			return day, day.Valid()
		}
		day := models.ParseWeekday(trimmed)
		return day, day.Valid()
	default:
		return 0, false
	}
}

// parseClock converts an integer hour-of-day or an "HH:MM" string into
// minutes from midnight.
func parseClock(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case float64:
		hour := int(v)
		if hour < 0 || hour > 23 {
			return 0, false
		}
		return hour * 60, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if hour, err := strconv.Atoi(trimmed); err == nil {
			if hour < 0 || hour > 23 {
				return 0, false
			}
			return hour * 60, true
		}
		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			return 0, false
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, false
		}
		minute, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, false
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return 0, false
		}
		return hour*60 + minute, true
	default:
		return 0, false
	}
}

func firstField(obj map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if value, ok := obj[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func stringField(obj map[string]interface{}, keys ...string) string {
	switch v := firstField(obj, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

func intField(obj map[string]interface{}, keys ...string) int {
	switch v := firstField(obj, keys...).(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func optionalIntField(obj map[string]interface{}, keys ...string) *int {
	switch v := firstField(obj, keys...).(type) {
	case float64:
		n := int(v)
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return &n
		}
	}
	return nil
}

func boolField(obj map[string]interface{}, keys ...string) bool {
	switch v := firstField(obj, keys...).(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
