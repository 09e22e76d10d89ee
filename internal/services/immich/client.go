package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// HTTPDoer describes the HTTP client used by the Immich service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Immich server REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// New constructs an Immich API client. A nil doer falls back to a
// default client with the given timeout.
func New(baseURL, apiKey string, timeoutSeconds int, doer HTTPDoer) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("immich url required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("immich api key required")
	}
	if doer == nil {
		timeout := time.Duration(timeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: doer}, nil
}

// JobCounts reports queue depth for one Immich background job.
type JobCounts struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
	Paused  int `json:"paused"`
	Failed  int `json:"failed"`
}

// JobStatus is the state of one Immich background job queue.
type JobStatus struct {
	JobCounts   JobCounts `json:"jobCounts"`
	QueueStatus struct {
		IsActive bool `json:"isActive"`
		IsPaused bool `json:"isPaused"`
	} `json:"queueStatus"`
}

// ResumeReport summarizes a job-resume sweep.
type ResumeReport struct {
	Resumed        []string
	AlreadyRunning []string
	Failed         []string
}

// Ping verifies the server is reachable and the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/server/ping", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("immich ping returned %d", resp.StatusCode)
	}
	return nil
}

// Jobs returns the status of all background job queues.
func (c *Client) Jobs(ctx context.Context) (map[string]JobStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/jobs", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("immich jobs returned %d", resp.StatusCode)
	}
	var jobs map[string]JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode jobs response: %w", err)
	}
	return jobs, nil
}

// ResumeJob sends a resume command to one job queue.
func (c *Client) ResumeJob(ctx context.Context, name string) error {
	body := map[string]any{"command": "resume", "force": false}
	resp, err := c.do(ctx, http.MethodPut, "/api/jobs/"+name, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("immich resume %s returned %d", name, resp.StatusCode)
	}
	return nil
}

// ResumePausedJobs resumes every paused job queue. Immich pauses some
// queues (notably machine learning) during heavy uploads; resuming them
// after an import keeps thumbnails and smart search current.
func (c *Client) ResumePausedJobs(ctx context.Context) (*ResumeReport, error) {
	jobs, err := c.Jobs(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &ResumeReport{}
	for _, name := range names {
		status := jobs[name]
		if !status.QueueStatus.IsPaused {
			report.AlreadyRunning = append(report.AlreadyRunning, name)
			continue
		}
		if err := c.ResumeJob(ctx, name); err != nil {
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Resumed = append(report.Resumed, name)
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build immich request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("immich request %s %s: %w", method, path, err)
	}
	return resp, nil
}
