package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"carousel/internal/config"
	"carousel/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyImportCompleted(context.Background(), "takeout-x", 10, 2, 0); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, out *captured, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if calls != nil {
			calls.Add(1)
		}
		out.title = r.Header.Get("Title")
		out.tags = r.Header.Get("Tags")
		out.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		out.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, url string, mutate func(*config.Config)) notifications.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.DedupWindowSeconds = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return notifications.NewService(&cfg)
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "sync completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifySyncCompleted(context.Background(), "gdrive:Takeout", 90*time.Second)
			},
			expectTitle:   "Carousel - Sync Complete",
			expectMessage: "Takeout sync from gdrive:Takeout finished in 1m30s",
			expectTags:    "carousel,sync,completed",
		},
		{
			name: "export detected",
			notify: func(svc notifications.Service) error {
				return svc.NotifyExportDetected(context.Background(), "takeout-20240427T195310Z", 3, 3<<30)
			},
			expectTitle:   "Carousel - Export Detected",
			expectMessage: "New Takeout export: takeout-20240427T195310Z (3 parts, 3.0 GiB)",
			expectTags:    "carousel,export,detected",
		},
		{
			name: "import completed with errors",
			notify: func(svc notifications.Service) error {
				return svc.NotifyImportCompleted(context.Background(), "takeout-x", 120, 30, 2)
			},
			expectTitle:   "Carousel - Import Complete (with errors)",
			expectMessage: "Imported takeout-x: 120 uploaded, 30 duplicates, 2 errors",
			expectTags:    "carousel,import,completed",
		},
		{
			name: "extraction completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyExtractionCompleted(context.Background(), "takeout-x", 42, 512<<20)
			},
			expectTitle:   "Carousel - Extraction Complete",
			expectMessage: "Extracted takeout-x: 42 files (512 MiB)",
			expectTags:    "carousel,extract,completed",
		},
		{
			name: "review required",
			notify: func(svc notifications.Service) error {
				return svc.NotifyReviewRequired(context.Background(), "takeout-x", "corrupted part takeout-x-002.zip")
			},
			expectTitle:    "Carousel - Review Required",
			expectMessage:  "Manual review required: takeout-x\ncorrupted part takeout-x-002.zip",
			expectTags:     "carousel,review",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("rclone move failed"), "sync")
			},
			expectTitle:    "Carousel - Error",
			expectMessage:  "Error with sync: rclone move failed",
			expectTags:     "carousel,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			server := newCaptureServer(t, &got, nil)
			svc := newTestService(t, server.URL, nil)

			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	svc := newTestService(t, server.URL, func(cfg *config.Config) {
		cfg.Notifications.Sync = false
		cfg.Notifications.Import = false
	})

	if err := svc.NotifySyncCompleted(context.Background(), "gdrive:Takeout", time.Minute); err != nil {
		t.Fatalf("disabled sync event returned error: %v", err)
	}
	if err := svc.NotifyImportCompleted(context.Background(), "takeout-x", 1, 0, 0); err != nil {
		t.Fatalf("disabled import event returned error: %v", err)
	}
}

func TestDedupWindowSuppressesRepeats(t *testing.T) {
	var got captured
	var calls atomic.Int32
	server := newCaptureServer(t, &got, &calls)

	svc := newTestService(t, server.URL, func(cfg *config.Config) {
		cfg.Notifications.DedupWindowSeconds = 300
	})

	err := errors.New("rclone move failed")
	for range 3 {
		if sendErr := svc.NotifyError(context.Background(), err, "sync"); sendErr != nil {
			t.Fatalf("NotifyError: %v", sendErr)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls.Load())
	}

	if sendErr := svc.NotifyError(context.Background(), errors.New("different failure"), "sync"); sendErr != nil {
		t.Fatalf("NotifyError: %v", sendErr)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected distinct message to deliver, got %d calls", calls.Load())
	}
}
