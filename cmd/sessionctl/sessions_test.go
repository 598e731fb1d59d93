package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/repository"
)

func run(t *testing.T, mem *repository.Memory, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATA_DIR", t.TempDir())

	cmd := newRootCmd(func(context.Context, storageFlags) (repository.RecordStore, error) {
		return mem, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const export = `{
	"sessions": [
		{"id":"a","title":"Trip","messages":[{"role":"model","text":"hi"},{"role":"user","text":"plan a trip"}]},
		{"id":"b","title":"Recipes","messages":[{"id":"g","role":"model","text":"hi"}]}
	],
	"activeSessionId":"b"
}`

func TestImportListShow(t *testing.T) {
	mem := repository.NewMemory()

	out, err := run(t, mem, export, "sessions", "import", "-")
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 2 chats") {
		t.Errorf("import output = %q", out)
	}

	out, err = run(t, mem, "", "sessions", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "*") || !strings.Contains(lines[2], "Recipes") {
		t.Fatalf("list output:\n%s", out)
	}

	out, err = run(t, mem, "", "sessions", "show", "a")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "[user] plan a trip") {
		t.Fatalf("show output:\n%s", out)
	}

	if _, err := run(t, mem, "", "sessions", "show", "zzz"); err == nil {
		t.Fatal("show of a missing chat succeeded")
	}
}

func TestImportRefusesOverwrite(t *testing.T) {
	mem := repository.NewMemory()
	_ = mem.Save(context.Background(), config.SessionStoreKey, []byte(export))

	if _, err := run(t, mem, export, "sessions", "import", "-"); err == nil {
		t.Fatal("import replaced chats without --force")
	}
	if _, err := run(t, mem, export, "sessions", "import", "--force", "-"); err != nil {
		t.Fatalf("import --force: %v", err)
	}
	if _, err := run(t, mem, `{"sessions":[]}`, "sessions", "import", "--force", "-"); err == nil {
		t.Fatal("empty export accepted")
	}
}

func TestExportFile(t *testing.T) {
	mem := repository.NewMemory()
	_ = mem.Save(context.Background(), config.SessionStoreKey, []byte(export))

	path := filepath.Join(t.TempDir(), "chats.json")
	if _, err := run(t, mem, "", "sessions", "export", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), `"activeSessionId": "b"`) {
		t.Fatalf("export = %s", data)
	}
}

func TestListWithoutChats(t *testing.T) {
	if _, err := run(t, repository.NewMemory(), "", "sessions", "list"); err == nil {
		t.Fatal("list of an empty store succeeded")
	}
}
