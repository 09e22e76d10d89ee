package exports

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Export frequencies as Google Takeout presents them.
const (
	FrequencyOnce      = "Export once"
	FrequencyRecurring = "Export every 2 months for 1 year"
)

var photosFromYearPattern = regexp.MustCompile(`^Photos from (\d{4})$`)

// Album is one album's export schedule entry.
type Album struct {
	Name            string `yaml:"name"`
	LastExportDate  string `yaml:"last_export_date"`
	IsLarge         bool   `yaml:"is_large"`
	ExportFrequency string `yaml:"export_frequency"`
}

// Exported reports whether the album has been exported at least once.
func (a *Album) Exported() bool {
	return strings.TrimSpace(a.LastExportDate) != ""
}

// State is the on-disk album schedule.
type State struct {
	Albums      []Album  `yaml:"albums"`
	LargeAlbums []string `yaml:"large_albums"`
}

// Plan groups albums into pending export operations.
type Plan struct {
	Large      []string
	SmallBatch []string
}

// Empty reports whether the plan contains no work.
func (p Plan) Empty() bool {
	return len(p.Large) == 0 && len(p.SmallBatch) == 0
}

// Operations counts the Takeout exports the plan will create: one per
// large album plus one combined export for the small batch.
func (p Plan) Operations() int {
	n := len(p.Large)
	if len(p.SmallBatch) > 0 {
		n++
	}
	return n
}

// LoadState reads the schedule from path. A missing file yields an
// empty state so first runs bootstrap themselves.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read album state: %w", err)
	}
	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode album state: %w", err)
	}
	return &state, nil
}

// Save writes the schedule atomically.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode album state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write album state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace album state: %w", err)
	}
	return nil
}

// Register adds an album to the schedule if it is not already tracked.
// "Photos from YYYY" albums are marked large, and the current year's
// album gets the recurring frequency. Returns true when the album was
// newly added.
func (s *State) Register(name string, now time.Time) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if s.find(name) != nil {
		return false
	}
	album := Album{Name: name, ExportFrequency: FrequencyOnce}
	if year, ok := AlbumYear(name); ok {
		album.IsLarge = true
		if year == now.Year() {
			album.ExportFrequency = FrequencyRecurring
		}
	}
	s.Albums = append(s.Albums, album)
	if album.IsLarge && !slices.Contains(s.LargeAlbums, name) {
		s.LargeAlbums = append(s.LargeAlbums, name)
	}
	return true
}

// MarkExported stamps the listed albums with the export time.
func (s *State) MarkExported(names []string, now time.Time) {
	stamp := now.Format(time.RFC3339)
	for _, name := range names {
		if album := s.find(name); album != nil {
			album.LastExportDate = stamp
		}
	}
}

// BuildPlan selects albums to export. In normal mode only albums never
// exported are included; exportAll ignores export history; a non-empty
// filter restricts the plan to the named albums and exports them
// regardless of history.
func (s *State) BuildPlan(exportAll bool, filter []string) Plan {
	var plan Plan
	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		wanted[name] = true
	}
	for i := range s.Albums {
		album := &s.Albums[i]
		switch {
		case len(wanted) > 0:
			if !wanted[album.Name] {
				continue
			}
		case !exportAll && album.Exported():
			continue
		}
		if album.IsLarge {
			plan.Large = append(plan.Large, album.Name)
		} else {
			plan.SmallBatch = append(plan.SmallBatch, album.Name)
		}
	}
	sort.Strings(plan.Large)
	sort.Strings(plan.SmallBatch)
	return plan
}

// Frequency returns the export frequency for an album, falling back to
// the name-derived rule for albums not yet in the state.
func (s *State) Frequency(name string, now time.Time) string {
	if album := s.find(name); album != nil && album.ExportFrequency != "" {
		return album.ExportFrequency
	}
	if year, ok := AlbumYear(name); ok && year == now.Year() {
		return FrequencyRecurring
	}
	return FrequencyOnce
}

// AlbumYear extracts the year from a "Photos from YYYY" album name.
func AlbumYear(name string) (int, bool) {
	match := photosFromYearPattern.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	year, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

func (s *State) find(name string) *Album {
	for i := range s.Albums {
		if s.Albums[i].Name == name {
			return &s.Albums[i]
		}
	}
	return nil
}
