package sheets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheets.yaml")

	if _, err := LoadConfig(path); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing file: got %v, want ErrNotConfigured", err)
	}

	body := "spreadsheet_id: 1abcDEF\ncredentials_file: /tmp/creds.json\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SpreadsheetID != "1abcDEF" || cfg.CredentialsFile != "/tmp/creds.json" {
		t.Fatalf("cfg = %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("credentials_file: only\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("config without spreadsheet_id accepted")
	}
}

func TestMemoryRowAddressing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.EnsureSheets(ctx, map[string][]string{"Goals": {"goal_id", "title"}}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	ws := m.Sheet("Goals")

	for _, r := range [][]string{{"g1", "first"}, {"g2", "second"}, {"g3", "third"}} {
		if err := ws.AppendRow(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Row numbers are absolute spreadsheet rows; the header is row 1.
	row, err := ws.FindRow(ctx, "g2")
	if err != nil || row != 3 {
		t.Fatalf("FindRow(g2) = %d, %v; want 3", row, err)
	}
	if row, _ := ws.FindRow(ctx, "nope"); row != 0 {
		t.Fatalf("FindRow(nope) = %d; want 0", row)
	}

	if err := ws.UpdateRow(ctx, 3, []string{"g2", "renamed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := ws.DeleteRow(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, err := ws.Rows(ctx)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := [][]string{{"g2", "renamed"}, {"g3", "third"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		if rows[i][0] != want[i][0] || rows[i][1] != want[i][1] {
			t.Fatalf("rows = %v, want %v", rows, want)
		}
	}

	if err := m.Sheet("Missing").AppendRow(ctx, []string{"x"}); err == nil {
		t.Fatalf("append to missing worksheet accepted")
	}
}
