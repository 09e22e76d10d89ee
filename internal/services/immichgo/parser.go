package immichgo

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"carousel/internal/manifest"
)

// Outcome is the final upload state of one file, keyed by basename.
type Outcome struct {
	Status string
	Reason string
	Albums []string
	Tags   []string
}

// Counts aggregates upload activity across a whole run.
type Counts struct {
	Uploaded         int
	ServerDuplicates int
	LocalDuplicates  int
	ServerBetter     int
	Upgraded         int
	Errors           int
	ScannedImages    int
	ScannedVideos    int
	Sidecars         int
	AlbumsCreated    int
	AssetsTagged     int
	Stacks           int
}

// Result is the parsed content of one immich-go JSON log.
type Result struct {
	Files    map[string]*Outcome
	Summary  Counts
	Version  string
	Started  time.Time
	Finished time.Time
}

// Duration returns the wall time covered by the log.
func (r *Result) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

type logLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Msg     string `json:"msg"`
	File    string `json:"file"`
	Album   string `json:"album"`
	Tag     string `json:"tag"`
	Type    string `json:"type"`
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Version string `json:"version"`
}

// ParseLogFile reads an immich-go JSON log and returns per-file upload
// outcomes plus run totals. Non-JSON lines are skipped; a missing file
// is an error because every attempt should leave a log behind.
func ParseLogFile(logPath string) (*Result, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open upload log: %w", err)
	}
	defer f.Close()

	result := &Result{Files: make(map[string]*Outcome)}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(raw, "{") {
			continue
		}
		var line logLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			continue
		}
		result.apply(&line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read upload log: %w", err)
	}
	return result, nil
}

func (r *Result) apply(line *logLine) {
	if ts, err := time.Parse(time.RFC3339, line.Time); err == nil {
		if r.Started.IsZero() || ts.Before(r.Started) {
			r.Started = ts
		}
		if ts.After(r.Finished) {
			r.Finished = ts
		}
	}
	if line.Version != "" && r.Version == "" {
		r.Version = line.Version
	}

	msg := strings.ToLower(line.Msg)

	if strings.EqualFold(line.Level, "ERROR") {
		r.Summary.Errors++
		if line.File != "" {
			out := r.outcome(line.File)
			out.Status = manifest.UploadError
			out.Reason = firstNonEmpty(line.Error, line.Msg)
		}
		return
	}

	if line.File != "" {
		switch {
		case strings.Contains(msg, "uploaded successfully"):
			r.setStatus(line.File, manifest.UploadUploaded, line.Reason)
			r.Summary.Uploaded++
		case strings.Contains(msg, "server has duplicate"):
			r.setStatus(line.File, manifest.UploadServerDuplicate, line.Reason)
			r.Summary.ServerDuplicates++
		case strings.Contains(msg, "local duplicate"):
			r.setStatus(line.File, manifest.UploadLocalDuplicate, line.Reason)
			r.Summary.LocalDuplicates++
		case strings.Contains(msg, "server has a better asset"), strings.Contains(msg, "server better"):
			r.setStatus(line.File, manifest.UploadServerBetter, line.Reason)
			r.Summary.ServerBetter++
		case strings.Contains(msg, "upgraded"):
			r.setStatus(line.File, manifest.UploadUpgraded, line.Reason)
			r.Summary.Upgraded++
		case strings.Contains(msg, "added to album"):
			out := r.outcome(line.File)
			if line.Album != "" && !slices.Contains(out.Albums, line.Album) {
				out.Albums = append(out.Albums, line.Album)
			}
		case strings.Contains(msg, "tagged"):
			out := r.outcome(line.File)
			if line.Tag != "" && !slices.Contains(out.Tags, line.Tag) {
				out.Tags = append(out.Tags, line.Tag)
			}
			r.Summary.AssetsTagged++
		case strings.Contains(msg, "stacked"):
			r.Summary.Stacks++
		}
		return
	}

	switch {
	case strings.Contains(msg, "scanned image"), strings.Contains(msg, "discovered image"):
		r.Summary.ScannedImages++
	case strings.Contains(msg, "scanned video"), strings.Contains(msg, "discovered video"):
		r.Summary.ScannedVideos++
	case strings.Contains(msg, "album created"):
		r.Summary.AlbumsCreated++
	case strings.Contains(msg, "discovered sidecar"):
		r.Summary.Sidecars++
	case strings.Contains(msg, "stacked"):
		r.Summary.Stacks++
	}
}

func (r *Result) setStatus(file, status, reason string) {
	out := r.outcome(file)
	out.Status = status
	if reason != "" {
		out.Reason = reason
	}
}

// outcome resolves the map entry for a log file reference. immich-go
// prefixes paths inside archives with the archive name and a colon
// (takeout-x-001:Takeout/Google Photos/a.jpg); entries are keyed by
// basename so archive listings can be matched back up.
func (r *Result) outcome(file string) *Outcome {
	key := FileKey(file)
	out, ok := r.Files[key]
	if !ok {
		out = &Outcome{}
		r.Files[key] = out
	}
	return out
}

// FileKey normalizes a log file reference to the basename used to join
// against archive manifests.
func FileKey(file string) string {
	if idx := strings.IndexByte(file, ':'); idx >= 0 {
		file = file[idx+1:]
	}
	file = strings.ReplaceAll(file, "\\", "/")
	return path.Base(file)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
