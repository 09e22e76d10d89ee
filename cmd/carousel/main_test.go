package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carousel/internal/queue"
	"carousel/internal/testsupport"
)

func TestCLIQueueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	pending := testsupport.NewExport(t, env.store, "Alpha Export", "fp-alpha")
	failed := testsupport.NewExport(t, env.store, "Beta Export", "fp-beta")
	failItem(t, env.store, failed.ID, "import error")

	out, _, err := runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if !strings.Contains(out, "Pending") || !strings.Contains(out, "Failed") {
		t.Fatalf("unexpected queue status output: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "Alpha Export") || !strings.Contains(out, "Beta Export") {
		t.Fatalf("queue list missing items: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --status failed: %v", err)
	}
	if strings.Contains(out, "Alpha Export") || !strings.Contains(out, "Beta Export") {
		t.Fatalf("unexpected filtered list output: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "show", itoa(pending.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "Export: Alpha Export")
	requireContains(t, out, "Status: Pending")

	out, _, err = runCLI(t, []string{"queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Total: 2")
	requireContains(t, out, "Failed: 1")

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed items")
	retried, err := env.store.GetByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetByID after retry: %v", err)
	}
	if retried.Status != queue.StatusPending {
		t.Fatalf("expected retried item pending, got %s", retried.Status)
	}

	failItem(t, env.store, failed.ID, "import error")

	out, _, err = runCLI(t, []string{"queue", "clear", "--failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed items")

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared")

	out, _, err = runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status after clear: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestCLIQueueRetryByID(t *testing.T) {
	env := setupCLITestEnv(t)

	item := testsupport.NewExport(t, env.store, "Gamma Export", "fp-gamma")

	out, _, err := runCLI(t, []string{"queue", "retry", itoa(item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry pending item: %v", err)
	}
	requireContains(t, out, "is not in a retryable state")

	failItem(t, env.store, item.ID, "upload timeout")

	out, _, err = runCLI(t, []string{"queue", "retry", itoa(item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry failed item: %v", err)
	}
	requireContains(t, out, "reset for retry")
}

func TestCLIImportAndScan(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	sourceDir := filepath.Join(t.TempDir(), "holiday-photos")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		t.Fatalf("mkdir source dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, "IMG_0001.jpg"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	out, _, err := runCLI(t, []string{"import", sourceDir}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Queued folder import")
	requireContains(t, out, "holiday-photos")

	items, err := env.store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var queued *queue.Item
	for _, item := range items {
		if item.SourcePath == sourceDir {
			queued = item
		}
	}
	if queued == nil {
		t.Fatalf("folder import not queued: %v", items)
	}
	if queued.SourceType != queue.SourceFolder {
		t.Fatalf("expected folder source type, got %s", queued.SourceType)
	}

	out, _, err = runCLI(t, []string{"scan"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "No new exports found")
}

func TestCLIImportRejectsMissingDirectory(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(t.TempDir(), "absent")
	if _, _, err := runCLI(t, []string{"import", missing}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestCLIExportsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"exports", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("exports list: %v", err)
	}
	requireContains(t, out, "Photos from 2019")
	requireContains(t, out, "Family")
	requireContains(t, out, "never")

	out, _, err = runCLI(t, []string{"exports", "plan"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("exports plan: %v", err)
	}
	requireContains(t, out, "Export individually: Photos from 2019")
	requireContains(t, out, "Export as one batch: Family")
	requireContains(t, out, "Takeout operations needed: 2")

	out, _, err = runCLI(t, []string{"exports", "mark", "Family"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("exports mark: %v", err)
	}
	requireContains(t, out, "Marked 1 albums as exported")

	out, _, err = runCLI(t, []string{"exports", "plan"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("exports plan after mark: %v", err)
	}
	requireContains(t, out, "Takeout operations needed: 1")
	if strings.Contains(out, "Export as one batch") {
		t.Fatalf("expected small batch to be exhausted, got %q", out)
	}

	out, _, err = runCLI(t, []string{"exports", "plan", "--all"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("exports plan --all: %v", err)
	}
	requireContains(t, out, "Export as one batch: Family")
}

func TestCLIConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path:")
	requireContains(t, out, "Configuration valid")
}

func TestCLIDatabaseHealth(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"db-health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("db-health: %v", err)
	}
	requireContains(t, out, "Database exists: yes")
	requireContains(t, out, "queue_items table present: yes")
	requireContains(t, out, "Integrity check: yes")
}

func TestCLIStatusSections(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Pipeline Directories")
}

func TestCLIRecordsList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"records", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("records list: %v", err)
	}
	requireContains(t, out, "No metadata records found")
}
