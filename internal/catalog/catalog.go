package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"strata/internal/services"
)

// timestampPattern matches the YYYY-MM-DD-hh-mm-ss stamp embedded in recording names.
var timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}`)

// Day ordering modes.
const (
	OrderChronological = "chronological"
	OrderDiscovery     = "discovery"
)

// Recording is one input movie file.
type Recording struct {
	Name      string
	Timestamp string
	Date      string
	Processed bool
}

// DaySeries groups recordings sharing a calendar date under an ordinal label.
type DaySeries struct {
	Label      string
	Date       string
	Recordings []Recording
}

// Catalog is the day-series grouping for one data directory.
type Catalog struct {
	DataDir string
	Days    []DaySeries
	// Duplicates holds raw recordings shadowed by a processed variant with the
	// same name. They are excluded from Days.
	Duplicates []Recording
}

// Options controls recording discovery.
type Options struct {
	Extension       string
	ProcessedMarker string
	DayOrder        string
}

func (o Options) withDefaults() Options {
	if o.Extension == "" {
		o.Extension = ".isxd"
	}
	if o.ProcessedMarker == "" {
		o.ProcessedMarker = "_processed"
	}
	if o.DayOrder == "" {
		o.DayOrder = OrderChronological
	}
	return o
}

// Build scans dir and groups matching recordings into day series. Entries must
// carry the configured extension and an embedded timestamp. When a raw and a
// processed variant of the same recording both exist, the processed one is
// kept and the raw one is reported in Duplicates.
func Build(dir string, opts Options) (*Catalog, error) {
	opts = opts.withDefaults()
	names, err := listNames(dir, opts.DayOrder)
	if err != nil {
		return nil, services.Wrap(services.ErrFileSystem, "catalog", "build", fmt.Sprintf("list %s", dir), err)
	}

	type entry struct {
		rec   Recording
		order int
	}
	byKey := make(map[string]entry)
	var duplicates []Recording
	for idx, name := range names {
		rec, ok := ParseRecording(name, opts)
		if !ok {
			continue
		}
		key := RawName(name, opts)
		existing, seen := byKey[key]
		if !seen {
			byKey[key] = entry{rec: rec, order: idx}
			continue
		}
		if rec.Processed && !existing.rec.Processed {
			duplicates = append(duplicates, existing.rec)
			byKey[key] = entry{rec: rec, order: existing.order}
		} else {
			duplicates = append(duplicates, rec)
		}
	}

	entries := make([]entry, 0, len(byKey))
	for _, e := range byKey {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if opts.DayOrder == OrderDiscovery {
			return entries[i].order < entries[j].order
		}
		if entries[i].rec.Timestamp != entries[j].rec.Timestamp {
			return entries[i].rec.Timestamp < entries[j].rec.Timestamp
		}
		return entries[i].rec.Name < entries[j].rec.Name
	})

	cat := &Catalog{DataDir: dir}
	dayIndex := make(map[string]int)
	for _, e := range entries {
		idx, ok := dayIndex[e.rec.Date]
		if !ok {
			idx = len(cat.Days)
			dayIndex[e.rec.Date] = idx
			cat.Days = append(cat.Days, DaySeries{Label: DayLabel(idx), Date: e.rec.Date})
		}
		cat.Days[idx].Recordings = append(cat.Days[idx].Recordings, e.rec)
	}
	if len(cat.Days) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "build",
			fmt.Sprintf("no %s recordings named with a year-month-day-hour-minute-second timestamp in %s", opts.Extension, dir), nil)
	}
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i].Name < duplicates[j].Name })
	cat.Duplicates = duplicates
	return cat, nil
}

// listNames returns directory entry names. Chronological mode sorts them;
// discovery mode keeps the order the directory yields.
func listNames(dir, order string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	if order != OrderDiscovery {
		sort.Strings(names)
	}
	return names, nil
}

// ParseRecording reports whether name is a recording and returns its parts.
func ParseRecording(name string, opts Options) (Recording, bool) {
	opts = opts.withDefaults()
	if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(opts.Extension)) {
		return Recording{}, false
	}
	stamp := timestampPattern.FindString(name)
	if stamp == "" {
		return Recording{}, false
	}
	return Recording{
		Name:      name,
		Timestamp: stamp,
		Date:      stamp[:10],
		Processed: IsProcessed(name, opts),
	}, true
}

// IsProcessed reports whether name carries the processed marker before its extension.
func IsProcessed(name string, opts Options) bool {
	opts = opts.withDefaults()
	base := name[:len(name)-len(filepath.Ext(name))]
	return strings.HasSuffix(base, opts.ProcessedMarker)
}

// RawName strips the processed marker from name, if present.
func RawName(name string, opts Options) string {
	opts = opts.withDefaults()
	if !IsProcessed(name, opts) {
		return name
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	return strings.TrimSuffix(base, opts.ProcessedMarker) + ext
}

// ProcessedName adds the processed marker before the extension of name.
func ProcessedName(name string, opts Options) string {
	opts = opts.withDefaults()
	if IsProcessed(name, opts) {
		return name
	}
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)] + opts.ProcessedMarker + ext
}

// DayLabel returns the ordinal label for a zero-based day index.
func DayLabel(index int) string {
	return fmt.Sprintf("day_%d", index+1)
}

// Labels returns the day labels in order.
func (c *Catalog) Labels() []string {
	labels := make([]string, len(c.Days))
	for i, d := range c.Days {
		labels[i] = d.Label
	}
	return labels
}

// Counts returns the number of recordings per day.
func (c *Catalog) Counts() []int {
	counts := make([]int, len(c.Days))
	for i, d := range c.Days {
		counts[i] = len(d.Recordings)
	}
	return counts
}

// Total returns the number of recordings across all days.
func (c *Catalog) Total() int {
	total := 0
	for _, d := range c.Days {
		total += len(d.Recordings)
	}
	return total
}

// SourcePaths returns the absolute recording paths in per-day shape.
func (c *Catalog) SourcePaths() [][]string {
	out := make([][]string, len(c.Days))
	for i, d := range c.Days {
		paths := make([]string, len(d.Recordings))
		for j, r := range d.Recordings {
			paths[j] = filepath.Join(c.DataDir, r.Name)
		}
		out[i] = paths
	}
	return out
}

// Sources returns the recording paths as a file set with an empty suffix.
func (c *Catalog) Sources() FileSet {
	return FileSet{Name: "recordings", Dir: c.DataDir, Days: c.SourcePaths()}
}

// StageFiles derives the file set for a stage suffix applied to the raw recordings.
func (c *Catalog) StageFiles(name, suffix, outputDir string) FileSet {
	return FileSet{
		Name:   name,
		Suffix: suffix,
		Dir:    outputDir,
		Days:   DeriveNames(c.SourcePaths(), suffix, outputDir),
	}
}

// DayArtifacts returns one <label><suffix> path per day inside outputDir.
func (c *Catalog) DayArtifacts(suffix, outputDir string) []string {
	return LabelFiles(c.Labels(), suffix, outputDir)
}
