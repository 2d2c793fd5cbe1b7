package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCollectJSONFilesRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "b.txt"), `x`)
	mustWriteFile(t, filepath.Join(root, ".hidden.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.JSON"), `{}`)
	mustWriteFile(t, filepath.Join(root, ".cache", "d.json"), `{}`)

	files, err := collectJSONFiles(root, true)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 json files, got %d (%v)", len(files), files)
	}
	if files[0] != filepath.Join(root, "a.json") {
		t.Fatalf("expected sorted output, got %v", files)
	}
}

func TestCollectJSONFilesNonRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{}`)

	files, err := collectJSONFiles(root, false)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 json file, got %d (%v)", len(files), files)
	}
}

func TestCollectJSONFilesRejectsFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "a.json")
	mustWriteFile(t, path, `{}`)

	if _, err := collectJSONFiles(path, true); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
	if _, err := collectJSONFiles("  ", true); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestValidateRecordFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	valid := filepath.Join(root, "valid.json")
	invalid := filepath.Join(root, "invalid.json")
	empty := filepath.Join(root, "empty.json")
	mustWriteFile(t, valid, `{"is_power_interruption_related": true, "date": "2025-06-05", "start_time": "0800H", "end_time": "1700H"}`)
	mustWriteFile(t, invalid, `{"affected_areas": "Poblacion"}`)
	mustWriteFile(t, empty, "  \n")

	rec, err := validateRecordFile(valid)
	if err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}
	if !rec.IsPowerInterruptionRelated || rec.StartTime != "0800H" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := validateRecordFile(invalid); err == nil {
		t.Fatalf("expected schema error")
	}
	if _, err := validateRecordFile(empty); err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestLoadJSONInputPrefersFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "payload.json")
	mustWriteFile(t, path, " {\"a\":1}\n")

	raw, err := loadJSONInput(`{"b":2}`, path, "payload")
	if err != nil {
		t.Fatalf("loadJSONInput failed: %v", err)
	}
	if string(raw) != `{"a":1}` {
		t.Fatalf("expected file contents, got %s", raw)
	}

	raw, err = loadJSONInput(` {"b":2} `, "", "payload")
	if err != nil {
		t.Fatalf("loadJSONInput inline failed: %v", err)
	}
	if string(raw) != `{"b":2}` {
		t.Fatalf("expected inline contents, got %s", raw)
	}

	if _, err := loadJSONInput("", "", "payload"); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := loadJSONInput("", filepath.Join(root, "missing.json"), "payload"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseDayFlag(t *testing.T) {
	t.Parallel()

	day, err := parseDayFlag("", nil)
	if err != nil || !day.IsZero() {
		t.Fatalf("expected zero time for empty flag, got %v %v", day, err)
	}
	if _, err := parseDayFlag("06/05/2025", time.UTC); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
	day, err = parseDayFlag("2025-06-05", time.UTC)
	if err != nil {
		t.Fatalf("parseDayFlag failed: %v", err)
	}
	if day.Year() != 2025 || day.Month() != time.June || day.Day() != 5 {
		t.Fatalf("unexpected day: %v", day)
	}
}

func TestRunUsageErrors(t *testing.T) {
	if code := Run(nil); code != 2 {
		t.Fatalf("expected exit 2 without command, got %d", code)
	}
	if code := Run([]string{"bogus"}); code != 2 {
		t.Fatalf("expected exit 2 for unknown command, got %d", code)
	}
	if code := Run([]string{"diff", "--old", "", "--new", ""}); code != 2 {
		t.Fatalf("expected exit 2 for missing diff inputs, got %d", code)
	}
	if code := Run([]string{"serve", "--port", "0"}); code != 2 {
		t.Fatalf("expected exit 2 for invalid port, got %d", code)
	}
}

func TestRunDiffMalformedSnapshot(t *testing.T) {
	root := t.TempDir()
	oldPath := filepath.Join(root, "old.json")
	newPath := filepath.Join(root, "new.json")
	mustWriteFile(t, oldPath, `[]`)
	mustWriteFile(t, newPath, `"not posts"`)

	if code := Run([]string{"diff", "--old", oldPath, "--new", newPath}); code != 2 {
		t.Fatalf("expected exit 2 for malformed snapshot, got %d", code)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
