// Package corruption flags and excises runs of corrupted frames in a
// recording.
//
// Each recording gets two adaptive thresholds: one for the count of
// near-black pixels and one for the mean count of the near-white bins. Both are
// derived from a random sample of its own frames. A frame is corrupt when its
// cropped, normalised histogram exceeds either threshold or cannot be computed
// at all. Consecutive corrupt frames form a Segment. A recording with at least
// one segment is written back as a trimmed copy by the imaging capability.
package corruption
