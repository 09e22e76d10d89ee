package immichgo

import (
	"os"
	"path/filepath"
	"testing"

	"carousel/internal/manifest"
)

const sampleLog = `{"time":"2024-05-01T10:00:00Z","level":"INFO","msg":"immich-go start","version":"0.22.1"}
{"time":"2024-05-01T10:00:01Z","level":"INFO","msg":"scanned image","file":""}
{"time":"2024-05-01T10:00:01Z","level":"INFO","msg":"scanned video"}
{"time":"2024-05-01T10:00:02Z","level":"INFO","msg":"uploaded successfully","file":"takeout-x-001:Takeout/Google Photos/album/IMG_0001.jpg"}
{"time":"2024-05-01T10:00:03Z","level":"INFO","msg":"server has duplicate","file":"takeout-x-001:Takeout/Google Photos/album/IMG_0002.jpg"}
{"time":"2024-05-01T10:00:04Z","level":"INFO","msg":"discarded local duplicate","file":"takeout-x-002:Takeout/Google Photos/album/IMG_0003.jpg"}
{"time":"2024-05-01T10:00:05Z","level":"INFO","msg":"server has a better asset","file":"IMG_0004.jpg"}
{"time":"2024-05-01T10:00:06Z","level":"INFO","msg":"upgraded","file":"IMG_0005.jpg"}
{"time":"2024-05-01T10:00:07Z","level":"ERROR","msg":"upload failed","file":"IMG_0006.jpg","error":"500 internal server error"}
{"time":"2024-05-01T10:00:08Z","level":"INFO","msg":"added to album","file":"takeout-x-001:Takeout/Google Photos/album/IMG_0001.jpg","album":"Holiday 2024"}
{"time":"2024-05-01T10:00:09Z","level":"INFO","msg":"tagged","file":"IMG_0001.jpg","tag":"takeout/2024-05-01"}
{"time":"2024-05-01T10:00:10Z","level":"INFO","msg":"album created","album":"Holiday 2024"}
{"time":"2024-05-01T10:00:11Z","level":"INFO","msg":"stacked"}
not json at all
{"time":"2024-05-01T10:00:12Z","level":"INFO","msg":"discovered sidecar","type":"album metadata"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestParseLogFile(t *testing.T) {
	result, err := ParseLogFile(writeLog(t, sampleLog))
	if err != nil {
		t.Fatalf("ParseLogFile: %v", err)
	}

	if result.Version != "0.22.1" {
		t.Errorf("version = %q", result.Version)
	}
	if got := result.Duration().Seconds(); got != 12 {
		t.Errorf("duration = %vs, want 12s", got)
	}

	s := result.Summary
	if s.Uploaded != 1 || s.ServerDuplicates != 1 || s.LocalDuplicates != 1 || s.ServerBetter != 1 || s.Upgraded != 1 {
		t.Errorf("summary counts = %+v", s)
	}
	if s.Errors != 1 {
		t.Errorf("errors = %d", s.Errors)
	}
	if s.ScannedImages != 1 || s.ScannedVideos != 1 || s.AlbumsCreated != 1 || s.Stacks != 1 || s.Sidecars != 1 {
		t.Errorf("activity counts = %+v", s)
	}

	cases := map[string]string{
		"IMG_0001.jpg": manifest.UploadUploaded,
		"IMG_0002.jpg": manifest.UploadServerDuplicate,
		"IMG_0003.jpg": manifest.UploadLocalDuplicate,
		"IMG_0004.jpg": manifest.UploadServerBetter,
		"IMG_0005.jpg": manifest.UploadUpgraded,
		"IMG_0006.jpg": manifest.UploadError,
	}
	for key, want := range cases {
		out, ok := result.Files[key]
		if !ok {
			t.Errorf("missing outcome for %s", key)
			continue
		}
		if out.Status != want {
			t.Errorf("%s status = %q, want %q", key, out.Status, want)
		}
	}

	uploaded := result.Files["IMG_0001.jpg"]
	if len(uploaded.Albums) != 1 || uploaded.Albums[0] != "Holiday 2024" {
		t.Errorf("albums = %v", uploaded.Albums)
	}
	if len(uploaded.Tags) != 1 || uploaded.Tags[0] != "takeout/2024-05-01" {
		t.Errorf("tags = %v", uploaded.Tags)
	}
	if result.Files["IMG_0006.jpg"].Reason != "500 internal server error" {
		t.Errorf("error reason = %q", result.Files["IMG_0006.jpg"].Reason)
	}
}

func TestParseLogFileMissing(t *testing.T) {
	if _, err := ParseLogFile(filepath.Join(t.TempDir(), "absent.log")); err == nil {
		t.Fatal("expected error for missing log")
	}
}

func TestFileKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"takeout-x-001:Takeout/Google Photos/a/IMG.jpg", "IMG.jpg"},
		{"Takeout/Google Photos/IMG.jpg", "IMG.jpg"},
		{"IMG.jpg", "IMG.jpg"},
		{`archive:Takeout\Google Photos\IMG.jpg`, "IMG.jpg"},
	}
	for _, tc := range cases {
		if got := FileKey(tc.in); got != tc.want {
			t.Errorf("FileKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
