package payload

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// uuidPattern matches UUID versions 1 through 5 in canonical form.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}`)

// uuidExact requires the whole string to be a UUID.
var uuidExact = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// jsonIDKeys are tried in order when the payload is a JSON object.
var jsonIDKeys = []string{"itemId", "item_id", "id"}

// Parse extracts an item identifier from a raw payload. The second return is
// false when no UUID is recoverable; that is an expected outcome for frames
// containing unrelated QR content, not an error.
func Parse(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if id, ok := parseJSON(trimmed); ok {
		return id, true
	}
	if match := uuidPattern.FindString(trimmed); match != "" && isUUID(match) {
		return match, true
	}
	if id, ok := parseColonDelimited(trimmed); ok {
		return id, true
	}
	return "", false
}

// isUUID is the final arbiter on candidate identifiers the regexes surface.
func isUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func parseJSON(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "{") {
		return "", false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", false
	}
	for _, key := range jsonIDKeys {
		value, ok := fields[key].(string)
		if !ok {
			continue
		}
		candidate := strings.TrimSpace(value)
		if uuidExact.MatchString(candidate) && isUUID(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func parseColonDelimited(raw string) (string, bool) {
	segments := strings.Split(raw, ":")
	last := strings.TrimSpace(segments[len(segments)-1])
	if uuidExact.MatchString(last) && isUUID(last) {
		return last, true
	}
	return "", false
}

// IsItemID reports whether value is a bare item identifier.
func IsItemID(value string) bool {
	trimmed := strings.TrimSpace(value)
	return uuidExact.MatchString(trimmed) && isUUID(trimmed)
}
