package corruption

import (
	"sort"

	"strata/internal/imaging"
)

// segmentTracker accumulates closed corrupt runs while frames are visited in
// index order.
type segmentTracker struct {
	segments []imaging.Segment
	open     *imaging.Segment
}

func (t *segmentTracker) observe(index int, corrupt bool) {
	switch {
	case corrupt && t.open != nil:
		t.open.End = index
	case corrupt:
		t.open = &imaging.Segment{Start: index, End: index}
	case t.open != nil:
		t.segments = append(t.segments, *t.open)
		t.open = nil
	}
}

// finish closes a run still open at the last frame and returns the merged list.
func (t *segmentTracker) finish() []imaging.Segment {
	if t.open != nil {
		t.segments = append(t.segments, *t.open)
		t.open = nil
	}
	return Merge(t.segments)
}

// Segments converts a per-frame corrupt mask into merged segments.
func Segments(corrupt []bool) []imaging.Segment {
	var t segmentTracker
	for i, c := range corrupt {
		t.observe(i, c)
	}
	return t.finish()
}

// Merge sorts segments and coalesces any that overlap or touch. Segments with
// End before Start are normalised first.
func Merge(segments []imaging.Segment) []imaging.Segment {
	if len(segments) == 0 {
		return nil
	}
	sorted := make([]imaging.Segment, len(segments))
	for i, s := range segments {
		if s.End < s.Start {
			s.Start, s.End = s.End, s.Start
		}
		sorted[i] = s
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})
	out := []imaging.Segment{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End+1 {
			last.End = max(last.End, s.End)
			continue
		}
		out = append(out, s)
	}
	return out
}
