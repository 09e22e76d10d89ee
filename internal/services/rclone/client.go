package rclone

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProgressUpdate captures one rclone stats line.
type ProgressUpdate struct {
	Percent     float64
	Transferred string
	Speed       string
	ETA         string
}

// Syncer defines the behaviour required by the sync scheduler.
type Syncer interface {
	Move(ctx context.Context, remote, destDir string, progress func(ProgressUpdate)) error
	Sync(ctx context.Context, remote, destDir string, progress func(ProgressUpdate)) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps rclone CLI interactions.
type Client struct {
	binary      string
	transfers   int
	checkers    int
	moveTimeout time.Duration
	exec        Executor
}

// New constructs an rclone client. transfers and checkers fall back to
// rclone's own defaults when zero.
func New(binary string, transfers, checkers, moveTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rclone binary required")
	}
	client := &Client{
		binary:      binary,
		transfers:   transfers,
		checkers:    checkers,
		moveTimeout: time.Duration(moveTimeoutSeconds) * time.Second,
		exec:        commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Move pulls everything under remote into destDir, deleting the remote
// copies. Takeout exports are one-shot downloads so move, not sync,
// keeps the Drive folder from filling up.
func (c *Client) Move(ctx context.Context, remote, destDir string, progress func(ProgressUpdate)) error {
	if remote == "" {
		return errors.New("rclone remote required")
	}
	if destDir == "" {
		return errors.New("destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	args := []string{
		"move", remote, destDir,
		"--create-empty-src-dirs",
		"--delete-empty-src-dirs",
		"--verbose",
		"--stats", "10s",
	}
	args = c.appendConcurrency(args)

	moveCtx := ctx
	if c.moveTimeout > 0 {
		var cancel context.CancelFunc
		moveCtx, cancel = context.WithTimeout(ctx, c.moveTimeout)
		defer cancel()
	}

	if err := c.run(moveCtx, args, progress); err != nil {
		return fmt.Errorf("rclone move %s: %w", remote, err)
	}
	return nil
}

// Sync mirrors remote into destDir, excluding the Takeout folder that
// the move job owns. Used for the whole-drive backup.
func (c *Client) Sync(ctx context.Context, remote, destDir string, progress func(ProgressUpdate)) error {
	if remote == "" {
		return errors.New("rclone remote required")
	}
	if destDir == "" {
		return errors.New("destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	args := []string{
		"sync", remote, destDir,
		"--exclude", "Takeout/**",
		"--verbose",
		"--stats", "10s",
	}
	args = c.appendConcurrency(args)

	if err := c.run(ctx, args, progress); err != nil {
		return fmt.Errorf("rclone sync %s: %w", remote, err)
	}
	return nil
}

// Version returns the first line of `rclone version`, used by preflight
// to confirm the binary runs.
func (c *Client) Version(ctx context.Context) (string, error) {
	var first string
	err := c.exec.Run(ctx, c.binary, []string{"version"}, func(line string) {
		if first == "" {
			first = strings.TrimSpace(line)
		}
	})
	if err != nil {
		return "", fmt.Errorf("rclone version: %w", err)
	}
	return first, nil
}

func (c *Client) appendConcurrency(args []string) []string {
	if c.transfers > 0 {
		args = append(args, "--transfers", strconv.Itoa(c.transfers))
	}
	if c.checkers > 0 {
		args = append(args, "--checkers", strconv.Itoa(c.checkers))
	}
	return args
}

func (c *Client) run(ctx context.Context, args []string, progress func(ProgressUpdate)) error {
	return c.exec.Run(ctx, c.binary, args, func(line string) {
		if progress == nil {
			return
		}
		if update, ok := parseStatsLine(line); ok {
			progress(update)
		}
	})
}

// statsPattern matches rclone's periodic stats line, e.g.
// "Transferred:   1.5 GiB / 10 GiB, 15%, 5.2 MiB/s, ETA 27m30s".
var statsPattern = regexp.MustCompile(`Transferred:\s+(.+?),\s+(\d+)%(?:,\s+(\S+/s))?(?:,\s+ETA\s+(\S+))?`)

func parseStatsLine(line string) (ProgressUpdate, bool) {
	m := statsPattern.FindStringSubmatch(line)
	if m == nil {
		return ProgressUpdate{}, false
	}
	percent, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return ProgressUpdate{}, false
	}
	return ProgressUpdate{
		Percent:     percent,
		Transferred: strings.TrimSpace(m[1]),
		Speed:       m[3],
		ETA:         m[4],
	}, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
