package rclone

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
)

type fakeExecutor struct {
	binary string
	args   []string
	lines  []string
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string, onOutput func(string)) error {
	f.binary = binary
	f.args = args
	for _, line := range f.lines {
		onOutput(line)
	}
	return f.err
}

func TestMoveBuildsExpectedCommand(t *testing.T) {
	exec := &fakeExecutor{}
	client, err := New("rclone", 4, 0, 0, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "incoming")
	if err := client.Move(context.Background(), "gdrive:Takeout", dest, nil); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if exec.binary != "rclone" {
		t.Fatalf("binary = %q", exec.binary)
	}
	want := []string{
		"move", "gdrive:Takeout", dest,
		"--create-empty-src-dirs",
		"--delete-empty-src-dirs",
		"--verbose",
		"--stats", "10s",
		"--transfers", "4",
	}
	if !slices.Equal(exec.args, want) {
		t.Fatalf("args = %v, want %v", exec.args, want)
	}
}

func TestSyncExcludesTakeout(t *testing.T) {
	exec := &fakeExecutor{}
	client, err := New("rclone", 8, 16, 0, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dest := t.TempDir()
	if err := client.Sync(context.Background(), "gdrive:", dest, nil); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !slices.Contains(exec.args, "--exclude") {
		t.Fatalf("missing exclude flag: %v", exec.args)
	}
	idx := slices.Index(exec.args, "--exclude")
	if exec.args[idx+1] != "Takeout/**" {
		t.Fatalf("exclude pattern = %q", exec.args[idx+1])
	}
	if !slices.Contains(exec.args, "--checkers") {
		t.Fatalf("missing checkers flag: %v", exec.args)
	}
}

func TestMoveReportsProgress(t *testing.T) {
	exec := &fakeExecutor{lines: []string{
		"2024/05/01 10:00:00 INFO  : ",
		"Transferred:   	  1.500 GiB / 10 GiB, 15%, 5.2 MiB/s, ETA 27m30s",
		"Transferred:            3 / 12, 25%",
	}}
	client, err := New("rclone", 0, 0, 0, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var updates []ProgressUpdate
	err = client.Move(context.Background(), "gdrive:Takeout", t.TempDir(), func(u ProgressUpdate) {
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Percent != 15 {
		t.Fatalf("percent = %v", updates[0].Percent)
	}
	if updates[0].Speed != "5.2 MiB/s" {
		t.Fatalf("speed = %q", updates[0].Speed)
	}
	if updates[0].ETA != "27m30s" {
		t.Fatalf("eta = %q", updates[0].ETA)
	}
	if updates[1].Percent != 25 || updates[1].Speed != "" {
		t.Fatalf("second update = %+v", updates[1])
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := New("  ", 0, 0, 0); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
