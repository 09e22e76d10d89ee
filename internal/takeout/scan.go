package takeout

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFilterGlob matches standard Takeout export names.
const DefaultFilterGlob = "takeout-*.zip"

const partialSuffix = ".partial"

var multipartPattern = regexp.MustCompile(`^(.+)-(\d{3})\.zip$`)

// Part is one zip file belonging to an export.
type Part struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Valid   bool      `json:"valid"`
}

// Export is a group of zip parts sharing a Takeout export prefix.
type Export struct {
	Name     string `json:"name"`
	Dir      string `json:"dir"`
	Parts    []Part `json:"parts"`
	Partials []string `json:"partials,omitempty"`

	HasGooglePhotos bool `json:"has_google_photos"`
}

// TotalSize returns the combined size of all parts.
func (e *Export) TotalSize() int64 {
	var total int64
	for _, p := range e.Parts {
		total += p.Size
	}
	return total
}

// ModTime returns the newest part modification time.
func (e *Export) ModTime() time.Time {
	var newest time.Time
	for _, p := range e.Parts {
		if p.ModTime.After(newest) {
			newest = p.ModTime
		}
	}
	return newest
}

// CorruptedParts returns the names of parts that failed validation.
func (e *Export) CorruptedParts() []string {
	var names []string
	for _, p := range e.Parts {
		if !p.Valid {
			names = append(names, p.Name)
		}
	}
	return names
}

// Complete reports whether the export is safe to process: every part
// validates and no download is still in flight.
func (e *Export) Complete() bool {
	if len(e.Parts) == 0 {
		return false
	}
	if len(e.Partials) > 0 {
		return false
	}
	return len(e.CorruptedParts()) == 0
}

// PartPaths returns the absolute paths of all parts in order.
func (e *Export) PartPaths() []string {
	paths := make([]string, len(e.Parts))
	for i, p := range e.Parts {
		paths[i] = p.Path
	}
	return paths
}

// Scan walks dir for zip files matching filterGlob and groups them into
// exports, newest first. filterGlob is matched against the file name and
// may use doublestar syntax; empty means DefaultFilterGlob. Files still
// downloading (name + ".partial") suppress their export until the final
// zip lands.
func Scan(dir, filterGlob string) ([]Export, error) {
	if strings.TrimSpace(filterGlob) == "" {
		filterGlob = DefaultFilterGlob
	}
	if !doublestar.ValidatePattern(filterGlob) {
		return nil, fmt.Errorf("invalid filter glob %q", filterGlob)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read incoming dir: %w", err)
	}

	groups := make(map[string]*Export)
	group := func(name string) *Export {
		prefix := exportPrefix(name)
		exp, ok := groups[prefix]
		if !ok {
			exp = &Export{Name: prefix, Dir: dir}
			groups[prefix] = exp
		}
		return exp
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		if strings.HasSuffix(name, partialSuffix) {
			final := strings.TrimSuffix(name, partialSuffix)
			if matchesGlob(filterGlob, final) {
				group(final).Partials = append(group(final).Partials, name)
			}
			continue
		}
		if !strings.HasSuffix(strings.ToLower(name), ".zip") {
			continue
		}
		if !matchesGlob(filterGlob, name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		group(name).Parts = append(group(name).Parts, Part{
			Path:    path,
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Valid:   isValidZip(path),
		})
	}

	exports := make([]Export, 0, len(groups))
	for _, exp := range groups {
		sort.Slice(exp.Parts, func(i, j int) bool {
			return exp.Parts[i].Name < exp.Parts[j].Name
		})
		sort.Strings(exp.Partials)
		for _, p := range exp.Parts {
			if p.Valid && HasGooglePhotos(p.Path) {
				exp.HasGooglePhotos = true
				break
			}
		}
		exports = append(exports, *exp)
	}
	sort.Slice(exports, func(i, j int) bool {
		return exports[i].ModTime().After(exports[j].ModTime())
	})
	return exports, nil
}

// exportPrefix derives the group key for a zip name. Numbered multi-part
// archives group under the shared prefix; anything else groups alone
// under its stem.
func exportPrefix(name string) string {
	if m := multipartPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func matchesGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// isValidZip reports whether the central directory can be read. A
// truncated or in-flight download fails here.
func isValidZip(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	r.Close()
	return true
}

// HasGooglePhotos reports whether the archive contains a Google Photos
// directory. Localized Takeout exports use translated folder names.
func HasGooglePhotos(zipPath string) bool {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return false
	}
	defer r.Close()
	for _, f := range r.File {
		if IsGooglePhotosPath(f.Name) {
			return true
		}
	}
	return false
}
