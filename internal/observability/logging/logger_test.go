package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/edupack/edupack/internal/observability"
)

func decodeSingleEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, buf.String())
	}
	return entry
}

func TestJSONLEventFields(t *testing.T) {
	var buf bytes.Buffer
	logger := &jsonlLogger{writer: &buf, minLevel: 0}

	ctx := observability.WithOpID(context.Background())
	logger.Event(ctx, "build.complete", map[string]any{"components": 3})

	entry := decodeSingleEntry(t, &buf)

	for _, field := range []string{"ts", "level", "event", "component", "op_id", "schema_version"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}
	if entry["event"] != "edupack.build.complete" {
		t.Errorf("event = %v, want edupack.build.complete", entry["event"])
	}
	if entry["schema_version"] != SchemaVersion {
		t.Errorf("schema_version = %v, want %s", entry["schema_version"], SchemaVersion)
	}
	if entry["op_id"] == "" {
		t.Error("op_id must come from context")
	}
}

func TestJSONLLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := &jsonlLogger{writer: &buf, minLevel: levelPriority(LevelWarn)}

	logger.Debug("cache", "lookup")
	logger.Info("cache", "lookup")
	if buf.Len() != 0 {
		t.Fatalf("expected debug/info to be filtered, got %s", buf.String())
	}

	logger.Warn("cache", "case mismatch", "requested", "foo.bar")
	entry := decodeSingleEntry(t, &buf)
	if entry["level"] != LevelWarn {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["requested"] != "foo.bar" {
		t.Errorf("expected field pair to round-trip, got %v", entry["fields"])
	}
}

func TestFromContextDefaultsToNoop(t *testing.T) {
	logger := From(context.Background())
	// must be safe to use without any setup
	logger.Info("cache", "lookup")
	if err := logger.Close(); err != nil {
		t.Errorf("noop Close failed: %v", err)
	}
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := &jsonlLogger{writer: &buf, minLevel: 0}

	ctx := WithLogger(context.Background(), logger)
	From(ctx).Info("resolver", "closure complete", "size", 4)

	entry := decodeSingleEntry(t, &buf)
	if entry["component"] != "resolver" {
		t.Errorf("component = %v, want resolver", entry["component"])
	}
}
