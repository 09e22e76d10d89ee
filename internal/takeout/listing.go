package takeout

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"carousel/internal/manifest"
)

// ListArchive returns a manifest entry for every file in the zip,
// classified by type. Directory entries are skipped.
func ListArchive(zipPath string) ([]manifest.File, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", filepath.Base(zipPath), err)
	}
	defer r.Close()

	archiveName := filepath.Base(zipPath)
	files := make([]manifest.File, 0, len(r.File))
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := entry.Name
		files = append(files, manifest.File{
			Path:           name,
			Filename:       filepath.Base(name),
			Size:           int64(entry.UncompressedSize64),
			IsMedia:        IsMediaFile(name),
			IsGooglePhotos: IsGooglePhotosPath(name),
			IsJSON:         strings.EqualFold(filepath.Ext(name), ".json"),
			Archive:        archiveName,
		})
	}
	return files, nil
}

// ListExport concatenates the manifests of all parts of an export.
func ListExport(exp *Export) ([]manifest.File, error) {
	var files []manifest.File
	for _, part := range exp.Parts {
		partFiles, err := ListArchive(part.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, partFiles...)
	}
	return files, nil
}

// ListFolder walks root and returns a manifest entry per regular file,
// with paths relative to root. Hidden files and directories are skipped.
func ListFolder(root string) ([]manifest.File, error) {
	var files []manifest.File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, manifest.File{
			Path:     filepath.ToSlash(rel),
			Filename: name,
			Size:     info.Size(),
			IsMedia:  IsMediaFile(name),
			IsJSON:   strings.EqualFold(filepath.Ext(name), ".json"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk folder %s: %w", root, err)
	}
	return files, nil
}
