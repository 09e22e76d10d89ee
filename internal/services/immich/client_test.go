package immich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
)

func newTestServer(t *testing.T, jobs map[string]JobStatus) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	resumed := &[]string{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/server/ping", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"res": "pong"})
	})
	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobs)
	})
	mux.HandleFunc("PUT /api/jobs/{name}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Command string `json:"command"`
			Force   bool   `json:"force"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Command != "resume" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		*resumed = append(*resumed, r.PathValue("name"))
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, resumed
}

func pausedJob() JobStatus {
	var s JobStatus
	s.QueueStatus.IsPaused = true
	return s
}

func TestPing(t *testing.T) {
	server, _ := newTestServer(t, nil)
	client, err := New(server.URL, "test-key", 5, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestResumePausedJobs(t *testing.T) {
	jobs := map[string]JobStatus{
		"machineLearning":     pausedJob(),
		"thumbnailGeneration": pausedJob(),
		"metadataExtraction":  {},
	}
	server, resumed := newTestServer(t, jobs)
	client, err := New(server.URL, "test-key", 5, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := client.ResumePausedJobs(context.Background())
	if err != nil {
		t.Fatalf("ResumePausedJobs: %v", err)
	}
	if len(report.Resumed) != 2 {
		t.Fatalf("resumed = %v", report.Resumed)
	}
	if !slices.Contains(report.Resumed, "machineLearning") || !slices.Contains(report.Resumed, "thumbnailGeneration") {
		t.Fatalf("resumed = %v", report.Resumed)
	}
	if len(report.AlreadyRunning) != 1 || report.AlreadyRunning[0] != "metadataExtraction" {
		t.Fatalf("already running = %v", report.AlreadyRunning)
	}
	if len(*resumed) != 2 {
		t.Fatalf("server saw %d resumes", len(*resumed))
	}
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New("", "key", 5, nil); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := New("http://immich:2283", "  ", 5, nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}
