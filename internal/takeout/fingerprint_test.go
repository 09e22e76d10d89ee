package takeout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintStableAcrossDirectories(t *testing.T) {
	a := &Export{Parts: []Part{
		{Path: "/data/a/takeout-x-001.zip", Name: "takeout-x-001.zip", Size: 100},
		{Path: "/data/a/takeout-x-002.zip", Name: "takeout-x-002.zip", Size: 200},
	}}
	b := &Export{Parts: []Part{
		{Path: "/mnt/other/takeout-x-002.zip", Name: "takeout-x-002.zip", Size: 200},
		{Path: "/mnt/other/takeout-x-001.zip", Name: "takeout-x-001.zip", Size: 100},
	}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint should depend only on part names and sizes")
	}
	if len(Fingerprint(a)) != 16 {
		t.Fatalf("unexpected fingerprint length %d", len(Fingerprint(a)))
	}
}

func TestFingerprintDiffersOnSize(t *testing.T) {
	a := &Export{Parts: []Part{{Name: "takeout-x-001.zip", Size: 100}}}
	b := &Export{Parts: []Part{{Name: "takeout-x-001.zip", Size: 101}}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("fingerprint should change when part size changes")
	}
}

func TestFolderFingerprint(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "photo.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fp1, err := FolderFingerprint(root)
	if err != nil {
		t.Fatalf("FolderFingerprint: %v", err)
	}
	fp2, err := FolderFingerprint(root)
	if err != nil {
		t.Fatalf("FolderFingerprint: %v", err)
	}
	if fp1 != fp2 {
		t.Fatal("fingerprint should be stable for an unchanged folder")
	}
	if err := os.WriteFile(filepath.Join(root, "extra.jpg"), []byte("more"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fp3, err := FolderFingerprint(root)
	if err != nil {
		t.Fatalf("FolderFingerprint: %v", err)
	}
	if fp3 == fp1 {
		t.Fatal("fingerprint should change when folder contents change")
	}
}
