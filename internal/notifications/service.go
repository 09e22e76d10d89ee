package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"carousel/internal/config"
)

const userAgent = "Carousel-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySyncCompleted(ctx context.Context, remote string, duration time.Duration) error
	NotifyExportDetected(ctx context.Context, exportName string, parts int, totalSize int64) error
	NotifyDeviceDetected(ctx context.Context, label string) error
	NotifyImportCompleted(ctx context.Context, sourceName string, uploaded, duplicates, errors int) error
	NotifyExtractionCompleted(ctx context.Context, sourceName string, files int, totalSize int64) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyReviewRequired(ctx context.Context, sourceName, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		events:   cfg.Notifications,
		dedup:    time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		sent:     make(map[string]time.Time),
		now:      time.Now,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	events   config.Notifications
	dedup    time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, remote string, duration time.Duration) error {
	if !n.events.Sync {
		return nil
	}
	remote = strings.TrimSpace(remote)
	data := payload{
		title:   "Carousel - Sync Complete",
		message: fmt.Sprintf("Takeout sync from %s finished in %s", remote, roundDuration(duration)),
		tags:    []string{"carousel", "sync", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExportDetected(ctx context.Context, exportName string, parts int, totalSize int64) error {
	if !n.events.Queue {
		return nil
	}
	exportName = strings.TrimSpace(exportName)
	message := fmt.Sprintf("New Takeout export: %s (%s)", exportName, humanize.IBytes(uint64(totalSize)))
	if parts > 1 {
		message = fmt.Sprintf("New Takeout export: %s (%d parts, %s)", exportName, parts, humanize.IBytes(uint64(totalSize)))
	}
	data := payload{
		title:   "Carousel - Export Detected",
		message: message,
		tags:    []string{"carousel", "export", "detected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDeviceDetected(ctx context.Context, label string) error {
	if !n.events.Queue {
		return nil
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = "unlabeled"
	}
	data := payload{
		title:   "Carousel - Card Detected",
		message: fmt.Sprintf("Memory card detected: %s", label),
		tags:    []string{"carousel", "sdcard", "detected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, sourceName string, uploaded, duplicates, errors int) error {
	if !n.events.Import {
		return nil
	}
	sourceName = strings.TrimSpace(sourceName)
	var title, message string
	if errors == 0 {
		title = "Carousel - Import Complete"
		message = fmt.Sprintf("Imported %s: %d uploaded, %d duplicates", sourceName, uploaded, duplicates)
	} else {
		title = "Carousel - Import Complete (with errors)"
		message = fmt.Sprintf("Imported %s: %d uploaded, %d duplicates, %d errors", sourceName, uploaded, duplicates, errors)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"carousel", "import", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExtractionCompleted(ctx context.Context, sourceName string, files int, totalSize int64) error {
	if !n.events.Extraction {
		return nil
	}
	sourceName = strings.TrimSpace(sourceName)
	data := payload{
		title:   "Carousel - Extraction Complete",
		message: fmt.Sprintf("Extracted %s: %d files (%s)", sourceName, files, humanize.IBytes(uint64(totalSize))),
		tags:    []string{"carousel", "extract", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.events.Queue {
		return nil
	}
	durationText := roundDuration(duration)

	var title, message string
	if failed == 0 {
		title = "Carousel - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d items processed in %s", processed, durationText)
	} else {
		title = "Carousel - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"carousel", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewRequired(ctx context.Context, sourceName, reason string) error {
	if !n.events.Review {
		return nil
	}
	sourceName = strings.TrimSpace(sourceName)
	message := fmt.Sprintf("Manual review required: %s", sourceName)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Carousel - Review Required",
		message:  message,
		tags:     []string{"carousel", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.events.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Carousel - Error",
		message:  builder.String(),
		tags:     []string{"carousel", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Carousel - Test",
		message:  "Notification system test",
		tags:     []string{"carousel", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.suppressed(data) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// suppressed drops an identical notification sent within the dedup
// window. A crashed import retried in a loop should not page the phone
// every few seconds.
func (n *ntfyService) suppressed(data payload) bool {
	if n.dedup <= 0 {
		return false
	}
	key := data.title + "\x00" + data.message
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.sent[key]; ok && now.Sub(last) < n.dedup {
		return true
	}
	n.sent[key] = now
	for k, ts := range n.sent {
		if now.Sub(ts) >= n.dedup {
			delete(n.sent, k)
		}
	}
	return false
}

func roundDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifySyncCompleted(context.Context, string, time.Duration) error  { return nil }
func (noopService) NotifyExportDetected(context.Context, string, int, int64) error    { return nil }
func (noopService) NotifyDeviceDetected(context.Context, string) error                { return nil }
func (noopService) NotifyImportCompleted(context.Context, string, int, int, int) error {
	return nil
}
func (noopService) NotifyExtractionCompleted(context.Context, string, int, int64) error { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyReviewRequired(context.Context, string, string) error          { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
