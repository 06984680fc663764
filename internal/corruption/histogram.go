package corruption

import (
	"math"
	"sort"

	"strata/internal/imaging"
)

const histogramBins = 256

// Rect is a crop region in pixel coordinates.
type Rect struct {
	Left, Top, Width, Height int
}

// Area returns Width*Height.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Histogram returns the 256-bin histogram of f after scaling its intensities
// linearly onto 0..255 and truncating to integers. A frame with a single
// intensity lands entirely in bin 0.
func Histogram(f imaging.Frame) [histogramBins]int {
	var hist [histogramBins]int
	if len(f.Pixels) == 0 {
		return hist
	}
	lo, hi := f.Pixels[0], f.Pixels[0]
	for _, v := range f.Pixels[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := float64(hi) - float64(lo)
	if span <= 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		hist[0] = len(f.Pixels)
		return hist
	}
	for _, v := range f.Pixels {
		bin := int((float64(v) - float64(lo)) / span * 255)
		hist[min(max(bin, 0), histogramBins-1)]++
	}
	return hist
}

// whiteMean is the mean count across the top n bins.
func whiteMean(hist [histogramBins]int, n int) float64 {
	n = min(max(n, 1), histogramBins)
	total := 0
	for _, c := range hist[histogramBins-n:] {
		total += c
	}
	return float64(total) / float64(n)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
