package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNextCronDuration(t *testing.T) {
	d := nextCronDuration("0 3 * * *")
	if d <= 0 || d > 24*time.Hour {
		t.Errorf("duration = %v, want within (0, 24h]", d)
	}
}

func TestNextCronDuration_Invalid(t *testing.T) {
	if d := nextCronDuration("not a cron expr"); d != 0 {
		t.Errorf("duration = %v, want 0 for invalid expression", d)
	}
}

func TestNextCronDuration_EveryMinute(t *testing.T) {
	d := nextCronDuration("* * * * *")
	if d <= 0 || d > time.Minute {
		t.Errorf("duration = %v, want within (0, 1m]", d)
	}
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ticketd.yaml")
	content := `
discord:
  token: "abc123"
  guild_id: "guild-1"
db:
  driver: sqlite
  path: ` + filepath.Join(dir, "ticketd.db") + `
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDBInitCmd(t *testing.T) {
	path := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Migrated 2 tables") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDBPruneCmd_RetentionDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticketd.yaml")
	content := `
discord:
  token: "abc123"
  guild_id: "guild-1"
db:
  driver: sqlite
  path: ` + filepath.Join(dir, "ticketd.db") + `
housekeeping:
  retention_days: -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"db", "prune", "--config", path})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when the retention window is disabled")
	}
}

func TestDBPruneCmd_WithDays(t *testing.T) {
	path := writeTestConfig(t)

	// Migrate first so the prune query has tables to hit.
	initCmd := newRootCmd()
	initCmd.SetOut(new(bytes.Buffer))
	initCmd.SetArgs([]string{"db", "init", "--config", path})
	if err := initCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"db", "prune", "--config", path, "--days", "30"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db prune failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Pruned 0 closed ticket records") {
		t.Errorf("output = %q", buf.String())
	}
}
