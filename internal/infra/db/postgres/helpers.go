package postgres

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// escapeLike escapes ILIKE wildcards; backslash is the default escape character.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// filterClause builds a WHERE clause with numbered placeholders starting at $1.
func filterClause(tenant string, filters map[string]string) (string, []any) {
	where := "WHERE tenant_id = $1"
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
			args = append(args, v)
			where += fmt.Sprintf(" AND status = $%d", len(args))
		case "mood":
			args = append(args, strings.ToLower(v))
			where += fmt.Sprintf(" AND primary_mood = $%d", len(args))
		case "caption":
			args = append(args, "%"+escapeLike(v)+"%")
			where += fmt.Sprintf(" AND caption ILIKE $%d", len(args))
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
