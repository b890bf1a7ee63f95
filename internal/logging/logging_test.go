package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("prod", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Str("cycle_id", "c-1").Msg("reminder cycle finished")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug to be filtered, got %d lines: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	for _, key := range []string{"timestamp", "caller", "pid", "cycle_id"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected %q in %v", key, entry)
		}
	}
	if entry["env"] != "prod" {
		t.Fatalf("unexpected env field: %v", entry["env"])
	}
}

func TestNewDevLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("dev", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

func TestNewLocalUsesConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("local", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Trace().Msg("tracing")
	out := buf.String()
	if !strings.Contains(out, "tracing") || strings.HasPrefix(out, "{") {
		t.Fatalf("expected console output, got %q", out)
	}
}

func TestNewRejectsUnknownEnv(t *testing.T) {
	if _, err := New("staging", nil); err == nil {
		t.Fatal("expected unknown env error")
	}
}
