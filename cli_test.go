package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { configPath = "" })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShow(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_PASS", "do-not-print")
	t.Setenv("BLOG_EDITOR_AUTOSAVE_INTERVAL", "15s")

	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}

	if !strings.Contains(out, "autosave_interval: 15s") {
		t.Errorf("expected merged autosave interval, got:\n%s", out)
	}
	if strings.Contains(out, "do-not-print") {
		t.Error("expected admin password to be omitted")
	}
}

func TestUserAdd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	dbPath := filepath.Join(dir, "blog.db")
	t.Setenv("BLOG_DATABASE_PATH", dbPath)

	if _, err := runCLI(t, "user", "add", "alice", "--password", "secret"); err != nil {
		t.Fatalf("user add error: %v", err)
	}

	db, err := openDB(dbPath)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if _, err := authenticate(db, "alice", "secret"); err != nil {
		t.Errorf("expected new user to authenticate: %v", err)
	}

	if _, err := runCLI(t, "user", "add", "alice", "--password", "again"); err == nil {
		t.Error("expected duplicate username to fail")
	}
}

func TestUserAdd_RequiresPassword(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := runCLI(t, "user", "add", "alice"); err == nil {
		t.Error("expected missing --password to fail")
	}
}
