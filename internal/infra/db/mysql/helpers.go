package mysql

import (
	"encoding/json"
	"sort"
	"strings"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// escapeLikePattern escapes special characters in LIKE patterns to prevent SQL injection
func escapeLikePattern(s string) string {
	// Escape backslash first, then other LIKE special characters
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// filterClause builds the WHERE clause for a tenant plus the supported
// filters (status, mood, caption). Keys are applied in sorted order so the
// query text is stable.
func filterClause(tenant string, filters map[string]string) (string, []any) {
	where := "WHERE tenant_id = ?"
	args := []any{tenant}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.TrimSpace(filters[k])
		if v == "" {
			continue
		}
		switch k {
		case "status":
			where += " AND status = ?"
			args = append(args, v)
		case "mood":
			where += " AND primary_mood = ?"
			args = append(args, strings.ToLower(v))
		case "caption":
			where += " AND caption LIKE ?"
			args = append(args, "%"+escapeLikePattern(v)+"%")
		}
	}
	return where, args
}

func encodeScores(scores []domain.MoodScore) string {
	if len(scores) == 0 {
		return "[]"
	}
	b, err := json.Marshal(scores)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeScores(raw []byte) []domain.MoodScore {
	var scores []domain.MoodScore
	if len(raw) == 0 || json.Unmarshal(raw, &scores) != nil {
		return nil
	}
	return scores
}
