package schema

import (
	"encoding/json"
	"testing"

	"github.com/edupack/edupack/internal/models"
)

func mustParse(t *testing.T, raw string) []models.FieldSchema {
	t.Helper()
	fields, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return fields
}

func mustContent(t *testing.T, raw string) map[string]any {
	t.Helper()
	var content map[string]any
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		t.Fatalf("bad content fixture: %v", err)
	}
	return content
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	fields := mustParse(t, `[
		{"name": "title", "type": "text"},
		{"name": "score", "type": "number", "min": 0, "max": 100},
		{"name": "tags", "type": "list", "field": {"name": "tag", "type": "text"}}
	]`)

	content := mustContent(t, `{"title": 42, "score": 250, "tags": ["ok", 7]}`)

	result := Validate(content, fields)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d: %+v", len(result.Errors), result.Errors)
	}

	// one pass must surface every violation, not just the first
	paths := map[string]bool{}
	for _, e := range result.Errors {
		paths[e.FieldPath] = true
	}
	for _, want := range []string{"title", "score", "tags[1]"} {
		if !paths[want] {
			t.Errorf("expected an error at %q, got %+v", want, result.Errors)
		}
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	fields := mustParse(t, `[{"name": "title", "type": "text"}]`)

	result := Validate(map[string]any{}, fields)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].FieldPath != "title" {
		t.Errorf("expected path title, got %s", result.Errors[0].FieldPath)
	}
}

func TestValidateOptionalAndDefaultSkipMissing(t *testing.T) {
	fields := mustParse(t, `[
		{"name": "subtitle", "type": "text", "optional": true},
		{"name": "theme", "type": "text", "default": "plain"}
	]`)

	result := Validate(map[string]any{}, fields)
	if !result.Valid {
		t.Fatalf("expected valid result, got %+v", result.Errors)
	}
}

func TestMissingBooleanNeverFlagged(t *testing.T) {
	// booleans are treated as optional regardless of the optional flag
	fields := mustParse(t, `[{"name": "shuffle", "type": "boolean", "optional": false}]`)

	result := Validate(map[string]any{}, fields)
	if !result.Valid {
		t.Fatalf("missing boolean must not be flagged, got %+v", result.Errors)
	}

	// a present boolean of the wrong shape still is
	result = Validate(mustContent(t, `{"shuffle": "yes"}`), fields)
	if result.Valid {
		t.Fatal("present non-boolean value must be flagged")
	}
}

func TestValidateListLengthBounds(t *testing.T) {
	fields := mustParse(t, `[{
		"name": "cards", "type": "list", "min": 1,
		"field": {"name": "card", "type": "group", "fields": [
			{"name": "question", "type": "text"}
		]}
	}]`)

	result := Validate(mustContent(t, `{"cards": []}`), fields)
	if result.Valid {
		t.Fatal("expected invalid result for empty list")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one length error, got %+v", result.Errors)
	}
	if result.Errors[0].FieldPath != "cards" {
		t.Errorf("expected path cards, got %s", result.Errors[0].FieldPath)
	}
}

func TestValidateListElementErrorsStackWithLengthError(t *testing.T) {
	fields := mustParse(t, `[{
		"name": "cards", "type": "list", "min": 3,
		"field": {"name": "card", "type": "group", "fields": [
			{"name": "question", "type": "text"}
		]}
	}]`)

	result := Validate(mustContent(t, `{"cards": [{"question": 1}, {}]}`), fields)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	// one length violation plus one per failing element
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %+v", result.Errors)
	}
	if result.Errors[1].FieldPath != "cards[0].question" {
		t.Errorf("expected cards[0].question, got %s", result.Errors[1].FieldPath)
	}
}

func TestValidateGroupPaths(t *testing.T) {
	fields := mustParse(t, `[{
		"name": "settings", "type": "group", "fields": [
			{"name": "retry", "type": "group", "fields": [
				{"name": "label", "type": "text"}
			]}
		]
	}]`)

	result := Validate(mustContent(t, `{"settings": {"retry": {"label": false}}}`), fields)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if got := result.Errors[0].FieldPath; got != "settings.retry.label" {
		t.Errorf("expected settings.retry.label, got %s", got)
	}
}

func TestValidateComponentRef(t *testing.T) {
	fields := mustParse(t, `[{
		"name": "embedded", "type": "componentRef",
		"options": ["Course.Quiz", "Course.Text"]
	}]`)

	result := Validate(mustContent(t, `{"embedded": {"params": {}}}`), fields)
	if result.Valid {
		t.Fatal("expected invalid result without a component field")
	}

	result = Validate(mustContent(t, `{"embedded": {"component": "Course.Quiz 1.4", "params": {}}}`), fields)
	if !result.Valid {
		t.Fatalf("expected valid result, got %+v", result.Errors)
	}
}

func TestValidateIgnoresUndeclaredKeys(t *testing.T) {
	fields := mustParse(t, `[{"name": "title", "type": "text"}]`)

	result := Validate(mustContent(t, `{"title": "T", "extra": {"anything": true}}`), fields)
	if !result.Valid {
		t.Fatalf("undeclared keys must be ignored, got %+v", result.Errors)
	}
}

func TestValidateNeverPanicsOnWrongShapes(t *testing.T) {
	fields := mustParse(t, `[
		{"name": "media", "type": "media"},
		{"name": "nested", "type": "group", "fields": [{"name": "x", "type": "number"}]},
		{"name": "items", "type": "list", "field": {"name": "i", "type": "text"}}
	]`)

	content := mustContent(t, `{"media": "nope", "nested": [1, 2], "items": {"not": "a list"}}`)

	result := Validate(content, fields)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %+v", result.Errors)
	}
}

func TestNumberBounds(t *testing.T) {
	fields := mustParse(t, `[{"name": "score", "type": "number", "min": 0, "max": 10}]`)

	for _, tc := range []struct {
		raw   string
		valid bool
	}{
		{`{"score": 0}`, true},
		{`{"score": 10}`, true},
		{`{"score": -1}`, false},
		{`{"score": 11}`, false},
	} {
		result := Validate(mustContent(t, tc.raw), fields)
		if result.Valid != tc.valid {
			t.Errorf("%s: expected valid=%v, got %+v", tc.raw, tc.valid, result.Errors)
		}
	}
}
