package mysql

import (
	"reflect"
	"testing"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

func TestFilterClause(t *testing.T) {
	where, args := filterClause("t1", map[string]string{
		"status":  "success",
		"caption": "50%_off",
		"mood":    "Calm",
		"unknown": "x",
		"branch":  "",
	})
	wantWhere := "WHERE tenant_id = ? AND caption LIKE ? AND primary_mood = ? AND status = ?"
	if where != wantWhere {
		t.Errorf("where = %q, want %q", where, wantWhere)
	}
	wantArgs := []any{"t1", `%50\%\_off%`, "calm", "success"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestFilterClauseEmpty(t *testing.T) {
	where, args := filterClause("t1", nil)
	if where != "WHERE tenant_id = ?" || len(args) != 1 {
		t.Errorf("filterClause(nil) = %q %v", where, args)
	}
}

func TestScoresJSON(t *testing.T) {
	if got := encodeScores(nil); got != "[]" {
		t.Errorf("encodeScores(nil) = %q, want []", got)
	}
	in := []domain.MoodScore{{Label: "calm", Confidence: 0.75}}
	if got := decodeScores([]byte(encodeScores(in))); !reflect.DeepEqual(got, in) {
		t.Errorf("decodeScores = %v, want %v", got, in)
	}
	if got := decodeScores([]byte("not json")); got != nil {
		t.Errorf("decodeScores(garbage) = %v, want nil", got)
	}
}

func TestStringOrDash(t *testing.T) {
	if stringOrDash("  ") != "-" || stringOrDash("a") != "a" {
		t.Error("stringOrDash mismatch")
	}
}
