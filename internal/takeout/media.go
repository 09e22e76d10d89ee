package takeout

import (
	"path/filepath"
	"strings"
)

// mediaExtensions covers the photo and video formats immich-go accepts
// for upload. Everything else in an archive is extraction material.
var mediaExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {},
	".tiff": {}, ".tif": {}, ".webp": {}, ".heic": {}, ".heif": {},
	".raw": {}, ".cr2": {}, ".nef": {}, ".arw": {}, ".dng": {},
	".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".wmv": {},
	".flv": {}, ".webm": {}, ".m4v": {}, ".3gp": {}, ".3g2": {},
	".mpeg": {}, ".mpg": {}, ".mts": {}, ".m2ts": {},
}

// googlePhotosDirs holds the Google Photos folder names seen in Takeout
// exports, including localized variants.
var googlePhotosDirs = []string{
	"Google Photos",
	"Google Foto's",
}

// IsMediaFile reports whether the path has a photo or video extension.
func IsMediaFile(path string) bool {
	_, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsGooglePhotosPath reports whether the archive path sits under a
// Google Photos directory.
func IsGooglePhotosPath(path string) bool {
	for _, dir := range googlePhotosDirs {
		if strings.Contains(path, dir) {
			return true
		}
	}
	return false
}
