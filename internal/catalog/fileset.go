package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"strata/internal/services"
)

// FileSet is the expected output paths for one stage, index-aligned with the
// catalog's day series.
type FileSet struct {
	Name   string
	Suffix string
	Dir    string
	Days   [][]string
}

// Day returns the expected paths for a zero-based day index.
func (f FileSet) Day(index int) ([]string, error) {
	if len(f.Days) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "file set", fmt.Sprintf("file set %q is empty", f.Name), nil)
	}
	if index < 0 || index >= len(f.Days) || len(f.Days[index]) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "file set",
			fmt.Sprintf("day index %d out of range for %q (%d days)", index, f.Name, len(f.Days)), nil)
	}
	return f.Days[index], nil
}

// Flat returns every path in day order.
func (f FileSet) Flat() []string {
	return Flatten(f.Days)
}

// Counts returns the per-day lengths.
func (f FileSet) Counts() []int {
	counts := make([]int, len(f.Days))
	for i, d := range f.Days {
		counts[i] = len(d)
	}
	return counts
}

// Derive applies suffix to every path in f, placing results in outputDir.
func (f FileSet) Derive(name, suffix, outputDir string) FileSet {
	return FileSet{Name: name, Suffix: suffix, Dir: outputDir, Days: DeriveNames(f.Days, suffix, outputDir)}
}

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DeriveFlat maps each path to outputDir/<stem><suffix>.
func DeriveFlat(paths []string, suffix, outputDir string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Join(outputDir, Stem(p)+suffix)
	}
	return out
}

// DeriveNames flattens series, renames every entry, and re-splits by the
// original per-day counts so the result mirrors the input shape.
func DeriveNames(series [][]string, suffix, outputDir string) [][]string {
	counts := make([]int, len(series))
	for i, d := range series {
		counts[i] = len(d)
	}
	renamed := DeriveFlat(Flatten(series), suffix, outputDir)
	out, _ := Split(renamed, counts)
	return out
}

// Flatten concatenates nested per-day paths.
func Flatten(series [][]string) []string {
	total := 0
	for _, d := range series {
		total += len(d)
	}
	out := make([]string, 0, total)
	for _, d := range series {
		out = append(out, d...)
	}
	return out
}

// Split redistributes flat into consecutive groups of the given lengths.
func Split(flat []string, counts []int) ([][]string, error) {
	total := 0
	for _, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("split: negative count %d", c)
		}
		total += c
	}
	if total != len(flat) {
		return nil, fmt.Errorf("split: counts sum to %d but %d paths given", total, len(flat))
	}
	out := make([][]string, len(counts))
	pos := 0
	for i, c := range counts {
		out[i] = append([]string(nil), flat[pos:pos+c]...)
		pos += c
	}
	return out, nil
}

// LabelFiles returns outputDir/<label><suffix> for each label.
func LabelFiles(labels []string, suffix, outputDir string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = filepath.Join(outputDir, label+suffix)
	}
	return out
}
