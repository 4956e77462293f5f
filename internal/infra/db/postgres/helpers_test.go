package postgres

import (
	"reflect"
	"testing"
)

func TestFilterClausePlaceholders(t *testing.T) {
	where, args := filterClause("t1", map[string]string{
		"status":  "failed",
		"mood":    "DARK",
		"caption": "night_sky",
	})
	want := "WHERE tenant_id = $1 AND caption ILIKE $2 AND primary_mood = $3 AND status = $4"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	wantArgs := []any{"t1", `%night\_sky%`, "dark", "failed"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestFilterClauseSkipsBlankValues(t *testing.T) {
	where, args := filterClause("t1", map[string]string{"status": "  ", "mood": ""})
	if where != "WHERE tenant_id = $1" || len(args) != 1 {
		t.Errorf("filterClause = %q %v", where, args)
	}
}
