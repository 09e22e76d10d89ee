package importer_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carousel/internal/config"
	"carousel/internal/importer"
	"carousel/internal/logging"
	"carousel/internal/manifest"
	"carousel/internal/notifications"
	"carousel/internal/queue"
	"carousel/internal/services"
	"carousel/internal/services/immich"
	"carousel/internal/services/immichgo"
	"carousel/internal/stage"
	"carousel/internal/takeout"
	"carousel/internal/testsupport"
)

type fakeUploader struct {
	googleSpec *immichgo.GooglePhotosUpload
	folderSpec *immichgo.FolderUpload
	run        *immichgo.RunResult
	err        error
}

func (f *fakeUploader) UploadGooglePhotos(ctx context.Context, spec immichgo.GooglePhotosUpload) (*immichgo.RunResult, error) {
	f.googleSpec = &spec
	return f.run, f.err
}

func (f *fakeUploader) UploadFolder(ctx context.Context, spec immichgo.FolderUpload) (*immichgo.RunResult, error) {
	f.folderSpec = &spec
	return f.run, f.err
}

type fakeResumer struct {
	calls int
}

func (f *fakeResumer) ResumePausedJobs(ctx context.Context) (*immich.ResumeReport, error) {
	f.calls++
	return &immich.ResumeReport{Resumed: []string{"backgroundTask"}}, nil
}

func successRun(files map[string]*immichgo.Outcome, summary immichgo.Counts) *immichgo.RunResult {
	return &immichgo.RunResult{
		Result:   &immichgo.Result{Files: files, Summary: summary},
		Attempts: 1,
		Command:  "immich-go upload from-google-photos -s http://immich:2283 -k ***API_KEY***",
	}
}

func archiveItem(t *testing.T, store *queue.Store, cfg *config.Config, name string, parts []takeout.Part, files []manifest.File) *queue.Item {
	t.Helper()
	encoded, err := stage.EncodeParts(parts)
	if err != nil {
		t.Fatalf("EncodeParts: %v", err)
	}
	archives := make([]manifest.Archive, 0, len(parts))
	for _, p := range parts {
		archives = append(archives, manifest.Archive{Name: p.Name, Size: p.Size})
	}
	rec := manifest.NewArchiveImport(cfg.Paths.MetadataDir, name, archives, files)
	if err := rec.Save(); err != nil {
		t.Fatalf("save record: %v", err)
	}
	item, err := store.NewExport(context.Background(), name, queue.SourceTakeout, filepath.Dir(parts[0].Path), "fp-"+name, encoded)
	if err != nil {
		t.Fatalf("NewExport: %v", err)
	}
	item.HasPhotos = true
	item.RecordPath = rec.Path()
	item.ImportLogPath = filepath.Join(cfg.Paths.MetadataDir, rec.ImportLog)
	return item
}

func TestImportAppliesOutcomesToRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	parts := []takeout.Part{
		{Path: filepath.Join(cfg.Paths.IncomingDir, "takeout-x-001.zip"), Name: "takeout-x-001.zip", Size: 10, ModTime: time.Now(), Valid: true},
		{Path: filepath.Join(cfg.Paths.IncomingDir, "takeout-x-002.zip"), Name: "takeout-x-002.zip", Size: 10, ModTime: time.Now(), Valid: true},
	}
	files := []manifest.File{
		{Path: "Takeout/Google Photos/Summer/IMG_0001.jpg", Filename: "IMG_0001.jpg", Size: 100, IsMedia: true, IsGooglePhotos: true},
		{Path: "Takeout/Google Photos/Summer/IMG_0002.jpg", Filename: "IMG_0002.jpg", Size: 100, IsMedia: true, IsGooglePhotos: true},
		{Path: "Takeout/Google Photos/Summer/IMG_0001.jpg.json", Filename: "IMG_0001.jpg.json", Size: 10, IsJSON: true},
		{Path: "Takeout/Drive/notes.txt", Filename: "notes.txt", Size: 5},
	}
	item := archiveItem(t, store, cfg, "takeout-x", parts, files)

	uploader := &fakeUploader{run: successRun(map[string]*immichgo.Outcome{
		"IMG_0001.jpg": {Status: manifest.UploadUploaded, Albums: []string{"Summer"}},
		"IMG_0002.jpg": {Status: manifest.UploadServerDuplicate, Reason: "server has duplicate"},
	}, immichgo.Counts{Uploaded: 1, ServerDuplicates: 1})}
	resumer := &fakeResumer{}

	imp := importer.NewImporterWithDependencies(cfg, store, logging.NewNop(), uploader, resumer, notifications.NewService(cfg))
	if err := imp.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if uploader.googleSpec == nil {
		t.Fatal("expected google photos upload")
	}
	if want := filepath.Join(cfg.Paths.IncomingDir, "takeout-x-*.zip"); uploader.googleSpec.ZipGlob != want {
		t.Fatalf("zip glob = %q, want %q", uploader.googleSpec.ZipGlob, want)
	}
	if resumer.calls != 1 {
		t.Fatalf("resume calls = %d", resumer.calls)
	}
	if item.SummaryJSON == "" {
		t.Fatal("expected summary json on item")
	}

	rec, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	byName := map[string]manifest.File{}
	for _, f := range rec.Files {
		byName[f.Filename] = f
	}
	if got := byName["IMG_0001.jpg"]; got.Disposition != manifest.DispositionImported || len(got.Albums) != 1 {
		t.Fatalf("IMG_0001 = %+v", got)
	}
	if got := byName["IMG_0002.jpg"]; got.Disposition != manifest.DispositionSkippedDupe {
		t.Fatalf("IMG_0002 disposition = %s", got.Disposition)
	}
	if got := byName["IMG_0001.jpg.json"]; got.Disposition != manifest.DispositionSkippedJSON {
		t.Fatalf("sidecar disposition = %s", got.Disposition)
	}
	if got := byName["notes.txt"]; got.Disposition != manifest.DispositionPending {
		t.Fatalf("drive file disposition = %s", got.Disposition)
	}
	if rec.Summary == nil || rec.Summary.Uploaded != 1 || rec.Summary.ServerDuplicate != 1 {
		t.Fatalf("summary = %+v", rec.Summary)
	}
	if !strings.Contains(rec.Command, immichgo.MaskedAPIKey) {
		t.Fatalf("command not masked: %q", rec.Command)
	}
}

func TestImportSinglePartUsesExactPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	part := takeout.Part{Path: filepath.Join(cfg.Paths.IncomingDir, "photos.zip"), Name: "photos.zip", Size: 10, ModTime: time.Now(), Valid: true}
	files := []manifest.File{
		{Path: "Google Photos/IMG_1.jpg", Filename: "IMG_1.jpg", Size: 1, IsMedia: true, IsGooglePhotos: true},
	}
	item := archiveItem(t, store, cfg, "photos", []takeout.Part{part}, files)

	uploader := &fakeUploader{run: successRun(nil, immichgo.Counts{})}
	imp := importer.NewImporterWithDependencies(cfg, store, logging.NewNop(), uploader, nil, notifications.NewService(cfg))
	if err := imp.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if uploader.googleSpec.ZipGlob != part.Path {
		t.Fatalf("zip glob = %q, want exact path", uploader.googleSpec.ZipGlob)
	}
}

func TestImportSkipsWithoutPhotos(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	item, err := store.NewExport(context.Background(), "takeout-docs", queue.SourceTakeout, cfg.Paths.IncomingDir, "fp-docs", "")
	if err != nil {
		t.Fatalf("NewExport: %v", err)
	}
	item.HasPhotos = false

	uploader := &fakeUploader{}
	imp := importer.NewImporterWithDependencies(cfg, store, logging.NewNop(), uploader, nil, notifications.NewService(cfg))
	if err := imp.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if uploader.googleSpec != nil || uploader.folderSpec != nil {
		t.Fatal("uploader should not be called")
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress = %v", item.ProgressPercent)
	}
}

func TestImportFailureFinishesRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	part := takeout.Part{Path: filepath.Join(cfg.Paths.IncomingDir, "takeout-f-001.zip"), Name: "takeout-f-001.zip", Size: 10, ModTime: time.Now(), Valid: true}
	files := []manifest.File{
		{Path: "Google Photos/IMG_9.jpg", Filename: "IMG_9.jpg", Size: 1, IsMedia: true, IsGooglePhotos: true},
	}
	item := archiveItem(t, store, cfg, "takeout-f", []takeout.Part{part}, files)

	uploader := &fakeUploader{run: &immichgo.RunResult{
		Result:   &immichgo.Result{Summary: immichgo.Counts{Errors: 3}},
		Attempts: 3,
		Command:  "immich-go upload",
	}}
	imp := importer.NewImporterWithDependencies(cfg, store, logging.NewNop(), uploader, nil, notifications.NewService(cfg))
	err := imp.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error")
	}
	if services.FailureStatus(err) != queue.StatusFailed {
		t.Fatalf("failure status = %s", services.FailureStatus(err))
	}
	rec, loadErr := manifest.Load(item.RecordPath)
	if loadErr != nil {
		t.Fatalf("load record: %v", loadErr)
	}
	if rec.Status != manifest.StatusFailed {
		t.Fatalf("record status = %s", rec.Status)
	}
	if rec.ErrorDetails == "" {
		t.Fatal("expected error details")
	}
}

func TestImportFolderUploadsWithTag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	root := filepath.Join(testsupport.BaseDir(cfg), "DCIM")
	files := []manifest.File{
		{Path: "100CANON/IMG_0044.CR2", Filename: "IMG_0044.CR2", Size: 9, IsMedia: true},
	}
	rec := manifest.NewFolderImport(cfg.Paths.MetadataDir, manifest.TypeSDImport, queue.SourceSDCard, root, files, "import/EOS_R6/2024-04-27", "EOS_R6")
	if err := rec.Save(); err != nil {
		t.Fatalf("save record: %v", err)
	}
	item, err := store.NewFolder(context.Background(), "DCIM", queue.SourceSDCard, root, "EOS_R6")
	if err != nil {
		t.Fatalf("NewFolder: %v", err)
	}
	item.RecordPath = rec.Path()
	item.ImportLogPath = filepath.Join(cfg.Paths.MetadataDir, rec.ImportLog)

	uploader := &fakeUploader{run: successRun(map[string]*immichgo.Outcome{
		"IMG_0044.CR2": {Status: manifest.UploadUploaded},
	}, immichgo.Counts{Uploaded: 1})}
	imp := importer.NewImporterWithDependencies(cfg, store, logging.NewNop(), uploader, nil, notifications.NewService(cfg))
	if err := imp.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if uploader.folderSpec == nil {
		t.Fatal("expected folder upload")
	}
	if uploader.folderSpec.Tag != "import/EOS_R6/2024-04-27" {
		t.Fatalf("tag = %q", uploader.folderSpec.Tag)
	}
	if uploader.folderSpec.Path != root {
		t.Fatalf("path = %q", uploader.folderSpec.Path)
	}
	reloaded, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if reloaded.Files[0].Disposition != manifest.DispositionImported {
		t.Fatalf("disposition = %s", reloaded.Files[0].Disposition)
	}
}

func TestImporterHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := &fakeUploader{}
	imp := importer.NewImporterWithDependencies(cfg, store, logging.NewNop(), uploader, nil, notifications.NewService(cfg))

	if health := imp.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy importer, got %q", health.Detail)
	}

	cfg.Immich.APIKey = ""
	cfg.Immich.APIKeyFile = ""
	health := imp.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy importer without an api key")
	}
	if !strings.Contains(health.Detail, "api key") {
		t.Fatalf("detail = %q", health.Detail)
	}
}
