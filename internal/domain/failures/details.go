package failures

import (
	"encoding/json"
	"strings"
)

// NormalizeDetails guarantees a valid JSON document for the details column.
// Empty input becomes "{}" and non-JSON input is wrapped as {"raw": ...}.
func NormalizeDetails(details string) string {
	if strings.TrimSpace(details) == "" {
		return "{}"
	}
	var js any
	if json.Unmarshal([]byte(details), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": details})
		return string(b)
	}
	return details
}
