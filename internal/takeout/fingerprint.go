package takeout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
)

// Fingerprint returns a stable identity for an export derived from its
// part names and sizes. The same export re-downloaded to a different
// directory fingerprints identically, so the queue can refuse
// duplicates.
func Fingerprint(exp *Export) string {
	lines := make([]string, 0, len(exp.Parts))
	for _, p := range exp.Parts {
		lines = append(lines, fmt.Sprintf("%s:%d", p.Name, p.Size))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// FolderFingerprint returns a stable identity for a folder import based
// on its resolved path and file count/size totals.
func FolderFingerprint(root string) (string, error) {
	resolved, err := resolvePath(root)
	if err != nil {
		return "", err
	}
	files, err := ListFolder(resolved)
	if err != nil {
		return "", err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:%d", resolved, len(files), total)
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

func resolvePath(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}
