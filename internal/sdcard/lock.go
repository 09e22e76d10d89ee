package sdcard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// AcquireLock takes a non-blocking per-label lock under stateDir.
// The second return is false when another import already holds it.
func AcquireLock(stateDir, label string) (*flock.Flock, bool, error) {
	lockDir := filepath.Join(stateDir, "sdcard-locks")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(lockDir, sanitizeLabel(label)+".lock"))
	held, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire device lock: %w", err)
	}
	if !held {
		return nil, false, nil
	}
	return lock, true, nil
}

func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
