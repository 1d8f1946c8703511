package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PREPPER_CONFIG", "")
	t.Setenv("PREPPER_BACKUP_PASSPHRASE", "")
	t.Setenv("PREPPER_S3_BUCKET", "")

	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func tempDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "admin.db")
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	if cmd.Use != "prepperadmin" {
		t.Errorf("Use = %q, want prepperadmin", cmd.Use)
	}

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, sub := range []string{"users", "backup", "migrate"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("help output missing %q", sub)
		}
	}
}

func TestMigratePrintsVersion(t *testing.T) {
	db := tempDB(t)
	out, err := run(t, db, "", "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema version") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "version 0\n") {
		t.Errorf("migrations were not applied: %q", out)
	}
}

func TestUsersLifecycle(t *testing.T) {
	db := tempDB(t)

	out, err := run(t, db, "", "users", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "no users") {
		t.Errorf("empty list output = %q", out)
	}

	out, err = run(t, db, "", "users", "create-admin", "--username", "root", "--email", "Root@Example.com", "--password", "secret1")
	if err != nil {
		t.Fatalf("create-admin: %v", err)
	}
	if !strings.Contains(out, "created admin root") {
		t.Errorf("create output = %q", out)
	}

	if _, err := run(t, db, "", "users", "create-admin", "--username", "root", "--email", "other@example.com", "--password", "secret1"); err == nil {
		t.Error("expected duplicate username to fail")
	}
	if _, err := run(t, db, "", "users", "create-admin", "--username", "short", "--email", "s@example.com", "--password", "abc"); err == nil {
		t.Error("expected short password to fail")
	}

	out, err = run(t, db, "", "users", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"USERNAME", "root", "root@example.com", "true"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, db, "newpass1\n", "users", "reset-password", "root@example.com")
	if err != nil {
		t.Fatalf("reset-password from stdin: %v", err)
	}
	if !strings.Contains(out, "password updated for root") {
		t.Errorf("reset output = %q", out)
	}

	if _, err := run(t, db, "", "users", "reset-password", "nobody", "--password", "whatever1"); err == nil {
		t.Error("expected unknown user to fail")
	}
	if _, err := run(t, db, "", "users", "reset-password", "root"); err == nil {
		t.Error("expected empty stdin to fail")
	}

	out, err = run(t, db, "", "users", "set-active", "1", "--active=false")
	if err != nil {
		t.Fatalf("set-active: %v", err)
	}
	if !strings.Contains(out, "root deactivated") {
		t.Errorf("set-active output = %q", out)
	}
}

func TestBackupRequiresStorage(t *testing.T) {
	db := tempDB(t)

	out, err := run(t, db, "", "backup", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "no backups") {
		t.Errorf("list output = %q", out)
	}

	if _, err := run(t, db, "", "backup", "run"); err == nil {
		t.Error("expected run without a passphrase or bucket to fail")
	}
	if _, err := run(t, db, "", "backup", "restore", "abc"); err == nil || !strings.Contains(err.Error(), "invalid backup id") {
		t.Errorf("restore err = %v", err)
	}
}
