package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"carousel/internal/fileutil"
)

// Record statuses.
const (
	StatusRunning             = "running"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
	StatusErrored             = "errored"
)

// Import types.
const (
	TypeGooglePhotos = "immich-go"
	TypeFolderImport = "folder-import"
	TypeSDImport     = "sd-import"
	TypeExtract      = "extract"
)

// Per-file upload outcomes reported by immich-go.
const (
	UploadUploaded        = "uploaded"
	UploadServerDuplicate = "server_duplicate"
	UploadLocalDuplicate  = "local_duplicate"
	UploadServerBetter    = "server_better"
	UploadUpgraded        = "upgraded"
	UploadError           = "error"
)

// Per-file dispositions recorded after processing.
const (
	DispositionPending         = "pending"
	DispositionImported        = "imported_to_immich"
	DispositionSkippedDupe     = "skipped_duplicate"
	DispositionSkippedJSON     = "skipped_json"
	DispositionExtracted       = "extracted"
	DispositionExtractFailed   = "extract_failed"
	DispositionError           = "error"
	DispositionNotProcessed    = "not_processed"
	DispositionCopiedForReview = "copied_for_review"
	DispositionCopyFailed      = "copy_failed"
)

const fileTimestampLayout = "20060102_150405"

// File is one entry in an import's file manifest.
type File struct {
	Path           string   `json:"path"`
	Filename       string   `json:"filename"`
	Size           int64    `json:"size"`
	IsMedia        bool     `json:"is_media"`
	IsGooglePhotos bool     `json:"is_google_photos"`
	IsJSON         bool     `json:"is_json"`
	Archive        string   `json:"archive,omitempty"`
	Disposition    string   `json:"disposition"`
	UploadStatus   string   `json:"upload_status,omitempty"`
	UploadReason   string   `json:"upload_reason,omitempty"`
	Albums         []string `json:"albums,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Imported reports whether the file no longer needs extraction because the
// server already holds it in some form.
func (f *File) Imported() bool {
	switch f.UploadStatus {
	case UploadUploaded, UploadUpgraded, UploadServerDuplicate, UploadLocalDuplicate, UploadServerBetter:
		return true
	}
	return false
}

// Archive describes one zip part belonging to an import.
type Archive struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Summary aggregates per-file outcomes for quick display.
type Summary struct {
	Total           int `json:"total"`
	MediaFiles      int `json:"media_files"`
	JSONFiles       int `json:"json_files"`
	Uploaded        int `json:"uploaded,omitempty"`
	ServerDuplicate int `json:"server_duplicate,omitempty"`
	LocalDuplicate  int `json:"local_duplicate,omitempty"`
	ServerBetter    int `json:"server_better,omitempty"`
	Upgraded        int `json:"upgraded,omitempty"`
	Errors          int `json:"errors,omitempty"`
	Extracted       int `json:"extracted,omitempty"`
	CopiedForReview int `json:"copied_for_review,omitempty"`
}

// Record tracks the status and results of one import operation. It is
// persisted as a JSON document under the metadata directory and survives
// daemon restarts.
type Record struct {
	Status          string    `json:"status"`
	ImportType      string    `json:"import_type"`
	SourceType      string    `json:"source_type"`
	SourceName      string    `json:"source_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitzero"`
	UpdateTime      time.Time `json:"update_time,omitzero"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Archives        []Archive `json:"archives,omitempty"`
	FileCount       int       `json:"file_count"`
	TotalSize       int64     `json:"total_size"`
	ImportDir       string    `json:"import_dir,omitempty"`
	SourcePath      string    `json:"source_path,omitempty"`
	Tag             string    `json:"tag,omitempty"`
	DeviceLabel     string    `json:"device_label,omitempty"`
	ImportLog       string    `json:"import_log,omitempty"`
	Command         string    `json:"command,omitempty"`
	ExitCode        int       `json:"exit_code,omitempty"`
	ExtractDest     string    `json:"extract_destination,omitempty"`
	ExtractedCount  int       `json:"extracted_count,omitempty"`
	ExtractFailed   int       `json:"extract_failed_count,omitempty"`
	Files           []File    `json:"files"`
	Summary         *Summary  `json:"summary,omitempty"`
	ErrorDetails    string    `json:"error_details,omitempty"`

	path string
}

// NewArchiveImport creates a running record for a multi-part archive import.
// Archive sizes and the file manifest must already be populated by inspection.
func NewArchiveImport(metadataDir, sourceName string, archives []Archive, files []File) *Record {
	now := time.Now().UTC()
	ts := now.Local().Format(fileTimestampLayout)
	rec := &Record{
		Status:     StatusRunning,
		ImportType: TypeGooglePhotos,
		SourceType: "google-photos",
		SourceName: sourceName,
		StartTime:  now,
		Archives:   archives,
		Files:      ensureDisposition(files, DispositionPending),
		ImportLog:  fmt.Sprintf("logs/%s.immich-go.%s.log", sourceName, ts),
		path:       filepath.Join(metadataDir, fmt.Sprintf("%s.%s.metadata.json", sourceName, ts)),
	}
	rec.FileCount = len(rec.Files)
	for _, a := range archives {
		rec.TotalSize += a.Size
	}
	return rec
}

// NewFolderImport creates a running record for a folder or removable-device
// import. The source name carries a timestamp so repeated imports of the same
// folder produce distinct records.
func NewFolderImport(metadataDir, importType, sourceType, folderPath string, files []File, tag, deviceLabel string) *Record {
	now := time.Now().UTC()
	ts := now.Local().Format(fileTimestampLayout)
	base := filepath.Base(strings.TrimRight(folderPath, "/"))
	sourceName := fmt.Sprintf("%s_%s", base, ts)
	rec := &Record{
		Status:      StatusRunning,
		ImportType:  importType,
		SourceType:  sourceType,
		SourceName:  sourceName,
		StartTime:   now,
		SourcePath:  folderPath,
		Tag:         tag,
		DeviceLabel: deviceLabel,
		Files:       ensureDisposition(files, DispositionPending),
		ImportLog:   fmt.Sprintf("logs/upload-%s.immich-go.%s.log", base, ts),
		path:        filepath.Join(metadataDir, fmt.Sprintf("%s.%s.metadata.json", sourceName, ts)),
	}
	rec.FileCount = len(rec.Files)
	for _, f := range rec.Files {
		rec.TotalSize += f.Size
	}
	return rec
}

// NewExtraction creates a record for an extraction-only operation on archives
// that carry no Google Photos content.
func NewExtraction(metadataDir, sourceName string, archives []Archive, files []File, extractDest string) *Record {
	now := time.Now().UTC()
	ts := now.Local().Format(fileTimestampLayout)
	rec := &Record{
		Status:      StatusRunning,
		ImportType:  TypeExtract,
		SourceType:  "google-takeout",
		SourceName:  sourceName,
		StartTime:   now,
		Archives:    archives,
		ExtractDest: extractDest,
		Files:       ensureDisposition(files, DispositionPending),
		path:        filepath.Join(metadataDir, fmt.Sprintf("%s.%s.metadata.json", sourceName, ts)),
	}
	rec.FileCount = len(rec.Files)
	for _, a := range archives {
		rec.TotalSize += a.Size
	}
	return rec
}

func ensureDisposition(files []File, disposition string) []File {
	for i := range files {
		if files[i].Disposition == "" {
			files[i].Disposition = disposition
		}
	}
	return files
}

// Path returns the on-disk location of the record.
func (r *Record) Path() string {
	return r.path
}

// Save persists the record atomically, stamping the update time.
func (r *Record) Save() error {
	if r.path == "" {
		return fmt.Errorf("record has no path")
	}
	r.UpdateTime = time.Now().UTC()
	if err := fileutil.WriteJSONAtomic(r.path, r); err != nil {
		return fmt.Errorf("save record %s: %w", filepath.Base(r.path), err)
	}
	return nil
}

// Finish marks the record with a terminal status, computes duration and the
// summary rollup, and saves.
func (r *Record) Finish(status, errorDetails string) error {
	r.Status = status
	r.EndTime = time.Now().UTC()
	if !r.StartTime.IsZero() {
		r.DurationSeconds = r.EndTime.Sub(r.StartTime).Seconds()
	}
	if errorDetails != "" {
		r.ErrorDetails = errorDetails
	}
	r.RecomputeSummary()
	return r.Save()
}

// RecomputeSummary rebuilds the summary rollup from the file manifest.
func (r *Record) RecomputeSummary() {
	s := &Summary{Total: len(r.Files)}
	for i := range r.Files {
		f := &r.Files[i]
		if f.IsMedia {
			s.MediaFiles++
		}
		if f.IsJSON {
			s.JSONFiles++
		}
		switch f.UploadStatus {
		case UploadUploaded:
			s.Uploaded++
		case UploadServerDuplicate:
			s.ServerDuplicate++
		case UploadLocalDuplicate:
			s.LocalDuplicate++
		case UploadServerBetter:
			s.ServerBetter++
		case UploadUpgraded:
			s.Upgraded++
		case UploadError:
			s.Errors++
		}
		switch f.Disposition {
		case DispositionExtracted:
			s.Extracted++
		case DispositionCopiedForReview:
			s.CopiedForReview++
		}
	}
	r.Summary = s
}

// Load reads a record from disk. The returned record saves back to the same
// path.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", filepath.Base(path), err)
	}
	rec.path = path
	return &rec, nil
}

// Info identifies a stored record without loading its file manifest.
type Info struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// List returns metadata record files under dir, newest first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata dir: %w", err)
	}
	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".metadata.json") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:       entry.Name(),
			Path:       filepath.Join(dir, entry.Name()),
			ModifiedAt: fi.ModTime(),
			Size:       fi.Size(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModifiedAt.After(infos[j].ModifiedAt)
	})
	return infos, nil
}

// CopyLog copies a tool log file into dir/logs and returns the relative path
// recorded in metadata. A missing source is not an error.
func CopyLog(logPath, metadataDir string) (string, error) {
	if _, err := os.Stat(logPath); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat log: %w", err)
	}
	logsDir := filepath.Join(metadataDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return "", fmt.Errorf("create logs dir: %w", err)
	}
	dest := filepath.Join(logsDir, filepath.Base(logPath))
	if sameFile(logPath, dest) {
		return filepath.Join("logs", filepath.Base(logPath)), nil
	}
	if err := fileutil.CopyFile(logPath, dest); err != nil {
		return "", fmt.Errorf("copy log: %w", err)
	}
	return filepath.Join("logs", filepath.Base(logPath)), nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
