package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carousel/internal/daemon"
	"carousel/internal/ipc"
	"carousel/internal/logging"
	"carousel/internal/queue"
	"carousel/internal/stage"
	"carousel/internal/testsupport"
	"carousel/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Item) error { return nil }
func (noopStage) Execute(context.Context, *queue.Item) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{Inspector: noopStage{}})
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "carousel.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}

	logPath := d.LogPath()
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail initial failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	followDone := make(chan struct{})
	go func(offset int64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 500})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Lines) != 1 || resp.Lines[0] != "fourth" {
			t.Errorf("unexpected follow lines: %#v", resp.Lines)
		}
		close(followDone)
	}(logResp.Offset)

	time.Sleep(100 * time.Millisecond)
	if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		_, _ = f.WriteString("fourth\n")
		_ = f.Close()
	} else {
		t.Fatalf("append log: %v", err)
	}

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}

	stopDuring, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopDuring.Stopped {
		t.Fatalf("expected Stop to report stopped, got: %#v", stopDuring)
	}

	itemA, err := store.NewExport(ctx, "takeout-a", queue.SourceTakeout, cfg.Paths.IncomingDir, "fp-a", "[]")
	if err != nil {
		t.Fatalf("NewExport A: %v", err)
	}
	itemB, err := store.NewExport(ctx, "takeout-b", queue.SourceTakeout, cfg.Paths.IncomingDir, "fp-b", "[]")
	if err != nil {
		t.Fatalf("NewExport B: %v", err)
	}
	itemB.Status = queue.StatusFailed
	if err := store.Update(ctx, itemB); err != nil {
		t.Fatalf("Update itemB: %v", err)
	}
	itemC, err := store.NewExport(ctx, "takeout-c", queue.SourceTakeout, cfg.Paths.IncomingDir, "fp-c", "[]")
	if err != nil {
		t.Fatalf("NewExport C: %v", err)
	}
	itemC.Status = queue.StatusImporting
	if err := store.Update(ctx, itemC); err != nil {
		t.Fatalf("Update itemC: %v", err)
	}

	folderDir := filepath.Join(cfg.Paths.IncomingDir, "sdcard-pull")
	if err := os.MkdirAll(folderDir, 0o755); err != nil {
		t.Fatalf("mkdir folder: %v", err)
	}
	importResp, err := client.Import(folderDir, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if importResp.Item.SourceType != queue.SourceFolder {
		t.Fatalf("expected folder source type, got %s", importResp.Item.SourceType)
	}
	if importResp.Item.Status != string(queue.StatusPending) {
		t.Fatalf("expected imported folder to be pending, got %s", importResp.Item.Status)
	}
	if importResp.Item.SourcePath == "" {
		t.Fatal("expected imported folder to include source path")
	}

	scanResp, err := client.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanResp.Queued != 0 {
		t.Fatalf("expected 0 queued from empty incoming dir, got %d", scanResp.Queued)
	}

	listResp, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Items) != 4 {
		t.Fatalf("expected 4 queue items, got %d", len(listResp.Items))
	}

	failedResp, err := client.QueueList([]string{string(queue.StatusFailed)})
	if err != nil {
		t.Fatalf("QueueList failed filter: %v", err)
	}
	if len(failedResp.Items) != 1 || failedResp.Items[0].ID != itemB.ID {
		t.Fatalf("expected failed item %d", itemB.ID)
	}

	resetResp, err := client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset failed: %v", err)
	}
	if resetResp.Updated != 1 {
		t.Fatalf("expected 1 item reset, got %d", resetResp.Updated)
	}
	updatedC, err := store.GetByID(ctx, itemC.ID)
	if err != nil {
		t.Fatalf("GetByID itemC: %v", err)
	}
	if updatedC.Status != queue.StatusInspected {
		t.Fatalf("expected itemC to resume at the import stage after reset, got %s", updatedC.Status)
	}

	clearFailedResp, err := client.QueueClearFailed()
	if err != nil {
		t.Fatalf("QueueClearFailed failed: %v", err)
	}
	if clearFailedResp.Removed != 1 {
		t.Fatalf("expected 1 failed item removed, got %d", clearFailedResp.Removed)
	}

	itemA.Status = queue.StatusCompleted
	if err := store.Update(ctx, itemA); err != nil {
		t.Fatalf("Update itemA: %v", err)
	}
	clearCompletedResp, err := client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted failed: %v", err)
	}
	if clearCompletedResp.Removed != 1 {
		t.Fatalf("expected 1 completed item removed, got %d", clearCompletedResp.Removed)
	}

	retryResp, err := client.QueueRetry(nil)
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retryResp.Updated != 0 {
		t.Fatalf("expected 0 retried items, got %d", retryResp.Updated)
	}

	healthResp, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if healthResp.Total != 2 || healthResp.Failed != 0 {
		t.Fatalf("unexpected health response: %#v", healthResp)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "queue.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp == nil || notifyResp.Message == "" {
		t.Fatalf("expected notification message, got %#v", notifyResp)
	}

	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed != 2 {
		t.Fatalf("expected 2 items cleared, got %d", clearResp.Removed)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	status2, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status2.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
