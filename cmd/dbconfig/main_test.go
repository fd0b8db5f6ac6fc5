package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DBCONFIG_STORAGE_DRIVER", "sqlite")
	t.Setenv("DBCONFIG_SQLITE_PATH", filepath.Join(dir, "dbconfig.db"))
	t.Setenv("DBCONFIG_REPLICA", "replica-a")
	t.Setenv("DBCONFIG_ARCHIVE_DRIVER", "fs")
	t.Setenv("DBCONFIG_ARCHIVE_FS_ROOT", filepath.Join(dir, "archive"))
}

func TestCreateListRenameDrop(t *testing.T) {
	setupEnv(t)

	stdout, stderr, code := runCLI(t, "-create", "shop")
	if code != 0 {
		t.Fatalf("create failed: %s", stderr)
	}
	id := strings.TrimSpace(strings.SplitN(stdout, "\n", 2)[0])
	if id == "" {
		t.Fatal("create printed no id")
	}

	stdout, stderr, code = runCLI(t, "-list")
	if code != 0 {
		t.Fatalf("list failed: %s", stderr)
	}
	var row map[string]any
	if err := json.Unmarshal([]byte(strings.SplitN(stdout, "\n", 2)[0]), &row); err != nil {
		t.Fatalf("list output not JSON: %q (%v)", stdout, err)
	}
	if row["id"] != id || row["name"] != "shop" {
		t.Fatalf("unexpected row %v", row)
	}

	if _, stderr, code = runCLI(t, "-rename", id+"=storefront"); code != 0 {
		t.Fatalf("rename failed: %s", stderr)
	}
	stdout, _, _ = runCLI(t, "-list")
	if !strings.Contains(stdout, "storefront") {
		t.Fatalf("rename not visible: %q", stdout)
	}

	if _, stderr, code = runCLI(t, "-drop", id); code != 0 {
		t.Fatalf("drop failed: %s", stderr)
	}
	stdout, _, _ = runCLI(t, "-list")
	if strings.TrimSpace(stdout) != "" {
		t.Fatalf("dropped database still listed: %q", stdout)
	}
}

func TestArchiveAndRestore(t *testing.T) {
	setupEnv(t)

	if _, stderr, code := runCLI(t, "-create", "shop"); code != 0 {
		t.Fatalf("create failed: %s", stderr)
	}
	stdout, stderr, code := runCLI(t, "-archive")
	if code != 0 {
		t.Fatalf("archive failed: %s", stderr)
	}
	if !strings.HasPrefix(strings.TrimSpace(stdout), "snapshots/") {
		t.Fatalf("archive printed no key: %q", stdout)
	}
	if _, stderr, code = runCLI(t, "-restore"); code != 0 {
		t.Fatalf("restore failed: %s", stderr)
	}
}

func TestErrorsAndUsage(t *testing.T) {
	setupEnv(t)

	if _, _, code := runCLI(t, "-nonsense"); code != 2 {
		t.Fatalf("bad flag: code %d", code)
	}
	if _, stderr, code := runCLI(t, "-rename", "missing-separator"); code != 1 || !strings.Contains(stderr, "id=newname") {
		t.Fatalf("bad rename spec: code %d stderr %q", code, stderr)
	}
	if _, stderr, code := runCLI(t, "-create", "bad name!"); code != 1 || !strings.Contains(stderr, "wrong format") {
		t.Fatalf("bad name: code %d stderr %q", code, stderr)
	}
}
