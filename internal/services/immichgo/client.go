package immichgo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MaskedAPIKey replaces the key value in displayed command lines.
const MaskedAPIKey = "***API_KEY***"

// Uploader defines the behaviour required by the import stage.
type Uploader interface {
	UploadGooglePhotos(ctx context.Context, spec GooglePhotosUpload) (*RunResult, error)
	UploadFolder(ctx context.Context, spec FolderUpload) (*RunResult, error)
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

// WithSleep overrides the retry delay sleeper (for tests).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// GooglePhotosUpload describes one Takeout archive upload. ZipGlob
// covers every part of a multi-part export.
type GooglePhotosUpload struct {
	ZipGlob    string
	LogFile    string
	SyncAlbums bool
	PeopleTag  bool
	TakeoutTag bool
	SessionTag bool
}

// FolderUpload describes one folder or removable-device upload.
type FolderUpload struct {
	Path       string
	Tag        string
	LogFile    string
	SessionTag bool
}

// RunResult carries the outcome of an upload including retries.
type RunResult struct {
	Result   *Result
	Attempts int
	Command  string
	ExitErr  error
}

// Succeeded reports whether the final attempt exited cleanly with no
// per-file errors in the log.
func (r *RunResult) Succeeded() bool {
	return r.ExitErr == nil && r.Result != nil && r.Result.Summary.Errors == 0
}

// Client wraps immich-go CLI interactions with retry handling.
type Client struct {
	binary        string
	server        string
	apiKey        string
	maxAttempts   int
	retryDelay    time.Duration
	uploadTimeout time.Duration
	exec          Executor
	sleep         func(context.Context, time.Duration) error
}

// New constructs an immich-go client.
func New(binary, server, apiKey string, maxAttempts, retryDelaySeconds, uploadTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("immich-go binary required")
	}
	if strings.TrimSpace(server) == "" {
		return nil, errors.New("immich server url required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("immich api key required")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	client := &Client{
		binary:        binary,
		server:        server,
		apiKey:        apiKey,
		maxAttempts:   maxAttempts,
		retryDelay:    time.Duration(retryDelaySeconds) * time.Second,
		uploadTimeout: time.Duration(uploadTimeoutSeconds) * time.Second,
		exec:          commandExecutor{},
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// UploadGooglePhotos uploads a Takeout export's Google Photos content.
func (c *Client) UploadGooglePhotos(ctx context.Context, spec GooglePhotosUpload) (*RunResult, error) {
	if spec.ZipGlob == "" {
		return nil, errors.New("zip glob required")
	}
	if spec.LogFile == "" {
		return nil, errors.New("log file required")
	}

	args := []string{"upload", "from-google-photos"}
	args = append(args, c.commonArgs(spec.LogFile)...)
	if spec.SyncAlbums {
		args = append(args, "--sync-albums", "--include-untitled-albums")
	}
	if spec.PeopleTag {
		args = append(args, "--people-tag")
	}
	if spec.TakeoutTag {
		args = append(args, "--takeout-tag")
	}
	args = append(args, "--include-archived", "--include-unmatched")
	if spec.SessionTag {
		args = append(args, "--session-tag")
	}
	args = append(args, spec.ZipGlob)

	return c.runWithRetry(ctx, args, spec.LogFile)
}

// UploadFolder uploads a local folder, optionally tagging every asset.
func (c *Client) UploadFolder(ctx context.Context, spec FolderUpload) (*RunResult, error) {
	if spec.Path == "" {
		return nil, errors.New("folder path required")
	}
	if spec.LogFile == "" {
		return nil, errors.New("log file required")
	}

	args := []string{"upload", "from-folder"}
	args = append(args, c.commonArgs(spec.LogFile)...)
	if spec.SessionTag {
		args = append(args, "--session-tag")
	}
	if spec.Tag != "" {
		args = append(args, "--tag="+spec.Tag)
	}
	args = append(args, spec.Path)

	return c.runWithRetry(ctx, args, spec.LogFile)
}

func (c *Client) commonArgs(logFile string) []string {
	return []string{
		"-s", c.server,
		"-k", c.apiKey,
		"--log-level=INFO",
		"--log-type=JSON",
		"--log-file=" + logFile,
		"--manage-raw-jpeg=StackCoverRaw",
		"--manage-burst=Stack",
		"--on-errors=continue",
		"--no-ui",
	}
}

// runWithRetry executes the upload up to maxAttempts times. The log
// file is removed before each attempt so the parse reflects only the
// latest run. An attempt succeeds when the process exits cleanly and
// the log contains no per-file errors.
func (c *Client) runWithRetry(ctx context.Context, args []string, logFile string) (*RunResult, error) {
	run := &RunResult{Command: MaskCommand(c.binary, args)}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		run.Attempts = attempt

		if err := os.Remove(logFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return run, fmt.Errorf("reset upload log: %w", err)
		}
		if dir := filepath.Dir(logFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return run, fmt.Errorf("create log dir: %w", err)
			}
		}

		execErr := func() error {
			attemptCtx := ctx
			if c.uploadTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
				defer cancel()
			}
			return c.exec.Run(attemptCtx, c.binary, args, nil)
		}()
		run.ExitErr = execErr

		result, parseErr := ParseLogFile(logFile)
		if parseErr != nil {
			result = &Result{}
		}
		run.Result = result

		if execErr == nil && result.Summary.Errors == 0 {
			return run, nil
		}

		switch {
		case execErr != nil:
			lastErr = fmt.Errorf("immich-go exited with error: %w", execErr)
		default:
			lastErr = fmt.Errorf("immich-go reported %d upload errors", result.Summary.Errors)
		}
		if ctx.Err() != nil {
			return run, ctx.Err()
		}
		if attempt < c.maxAttempts && c.retryDelay > 0 {
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return run, err
			}
		}
	}
	return run, lastErr
}

// MaskCommand renders a command line for logs and metadata with the API
// key value hidden.
func MaskCommand(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binary)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-k" || arg == "--api-key":
			parts = append(parts, arg, MaskedAPIKey)
			i++
		case strings.HasPrefix(arg, "--api-key="):
			parts = append(parts, "--api-key="+MaskedAPIKey)
		default:
			parts = append(parts, arg)
		}
	}
	return strings.Join(parts, " ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
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
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
