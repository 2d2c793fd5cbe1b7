package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterEmitsJSONOutsideLocal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "info")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	componentLogger := Component(logger, "reconcile")
	componentLogger.Info().Int64("record_id", 7).Msg("record created")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if event["service"] != "outage-watch" {
		t.Fatalf("unexpected service: %v", event["service"])
	}
	if event["component"] != "reconcile" {
		t.Fatalf("unexpected component: %v", event["component"])
	}
}

func TestNewWithWriterFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info event to be filtered, got %q", buf.String())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("local", "loud"); err == nil {
		t.Fatalf("expected level parse error")
	}
}
