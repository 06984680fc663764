package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"strata/internal/imaging"
	"strata/internal/services"
)

// Call records one invocation of the fake imaging capability.
type Call struct {
	Op       string
	Inputs   []string
	Outputs  []string
	Segments []imaging.Segment
}

// FakeImaging is an in-memory imaging.Capability. Operations create their
// output files so checkpoint logic sees real progress. Movie metadata and
// frames come from Movies, keyed by path.
type FakeImaging struct {
	mu     sync.Mutex
	calls  []Call
	Movies map[string][]imaging.Frame
	// Fail maps an operation name to the error it returns. Failing
	// operations create no outputs.
	Fail map[string]error
	// FailFor returns an error for specific inputs; nil lets the call proceed.
	FailFor func(op string, inputs []string) error
	// PartialWrite, when set for an operation, creates only the first output
	// before failing.
	PartialWrite map[string]bool
}

var _ imaging.Capability = (*FakeImaging)(nil)

// NewFakeImaging returns an empty fake.
func NewFakeImaging() *FakeImaging {
	return &FakeImaging{
		Movies:       make(map[string][]imaging.Frame),
		Fail:         make(map[string]error),
		PartialWrite: make(map[string]bool),
	}
}

// SetMovie registers frames for path.
func (f *FakeImaging) SetMovie(path string, frames []imaging.Frame) {
	f.mu.Lock()
	f.Movies[path] = frames
	f.mu.Unlock()
}

// Calls returns a copy of the recorded invocations.
func (f *FakeImaging) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Ops returns the operation names invoked, in order, excluding frame reads.
func (f *FakeImaging) Ops() []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Op == "read-frame" || c.Op == "movie-info" {
			continue
		}
		out = append(out, c.Op)
	}
	return out
}

// CallsFor returns the invocations of op.
func (f *FakeImaging) CallsFor(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeImaging) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *FakeImaging) failure(op string, inputs []string) error {
	f.mu.Lock()
	err := f.Fail[op]
	hook := f.FailFor
	f.mu.Unlock()
	if err == nil && hook != nil {
		err = hook(op, inputs)
	}
	if err != nil {
		return services.Wrap(services.ErrExternalOperation, "imaging", op, "fake failure", err)
	}
	return nil
}

// run records the call and creates outputs unless a failure is configured.
func (f *FakeImaging) run(ctx context.Context, op string, inputs, outputs []string) error {
	f.record(Call{Op: op, Inputs: append([]string(nil), inputs...), Outputs: append([]string(nil), outputs...)})
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrExternalOperation, "imaging", op, "cancelled", err)
	}
	if err := f.failure(op, inputs); err != nil {
		f.mu.Lock()
		partial := f.PartialWrite[op]
		f.mu.Unlock()
		if partial && len(outputs) > 0 {
			_ = touch(outputs[0])
		}
		return err
	}
	for _, out := range outputs {
		if out == "" {
			continue
		}
		if err := touch(out); err != nil {
			return services.Wrap(services.ErrExternalOperation, "imaging", op, "write output", err)
		}
	}
	return nil
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake"), 0o644)
}

func (f *FakeImaging) movie(path string) ([]imaging.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	frames, ok := f.Movies[path]
	if !ok {
		return nil, fmt.Errorf("no movie registered for %s", path)
	}
	return frames, nil
}

func (f *FakeImaging) MovieInfo(ctx context.Context, path string) (imaging.MovieInfo, error) {
	f.record(Call{Op: "movie-info", Inputs: []string{path}})
	if err := f.failure("movie-info", []string{path}); err != nil {
		return imaging.MovieInfo{}, err
	}
	frames, err := f.movie(path)
	if err != nil {
		return imaging.MovieInfo{}, services.Wrap(services.ErrExternalOperation, "imaging", "movie-info", "", err)
	}
	info := imaging.MovieInfo{NumFrames: len(frames), FramePeriod: 0.05}
	if len(frames) > 0 {
		info.Width, info.Height = frames[0].Width, frames[0].Height
	}
	return info, nil
}

// ReadFrame returns the registered frame. A frame with nil Pixels reads as an
// error, simulating an undecodable frame.
func (f *FakeImaging) ReadFrame(ctx context.Context, path string, index int) (imaging.Frame, error) {
	frames, err := f.movie(path)
	if err != nil {
		return imaging.Frame{}, services.Wrap(services.ErrExternalOperation, "imaging", "read-frame", "", err)
	}
	if index < 0 || index >= len(frames) {
		return imaging.Frame{}, services.Wrap(services.ErrExternalOperation, "imaging", "read-frame",
			fmt.Sprintf("index %d out of range", index), nil)
	}
	if frames[index].Pixels == nil {
		return imaging.Frame{}, services.Wrap(services.ErrExternalOperation, "imaging", "read-frame",
			fmt.Sprintf("frame %d unreadable", index), nil)
	}
	return frames[index], nil
}

func (f *FakeImaging) Preprocess(ctx context.Context, inputs, outputs []string, _ imaging.PreprocessParams) error {
	return f.run(ctx, "preprocess", inputs, outputs)
}

func (f *FakeImaging) SpatialFilter(ctx context.Context, inputs, outputs []string, _ imaging.SpatialFilterParams) error {
	return f.run(ctx, "spatial-filter", inputs, outputs)
}

func (f *FakeImaging) ProjectMovie(ctx context.Context, inputs []string, output string, stat imaging.Projection) error {
	return f.run(ctx, "project-movie-"+string(stat), inputs, []string{output})
}

func (f *FakeImaging) MotionCorrect(ctx context.Context, inputs, outputs []string, p imaging.MotionCorrectParams) error {
	return f.run(ctx, "motion-correct", inputs, append(append([]string(nil), outputs...), p.CropRectFile))
}

func (f *FakeImaging) RunCNMFe(ctx context.Context, inputs, outputs []string, _ imaging.CNMFeParams) error {
	return f.run(ctx, "run-cnmfe", inputs, outputs)
}

// ExportCellSet writes the CSV and names the TIFF after each cell the way the
// real exporter does, producing <stem>_C0.tiff beside the requested path.
func (f *FakeImaging) ExportCellSet(ctx context.Context, cellSets []string, csvFile, tiffFile string) error {
	ext := filepath.Ext(tiffFile)
	cellTiff := tiffFile[:len(tiffFile)-len(ext)] + "_C0" + ext
	return f.run(ctx, "export-cell-set", cellSets, []string{csvFile, cellTiff})
}

func (f *FakeImaging) DetectEvents(ctx context.Context, cellSets, eventSets []string, _ imaging.EventDetectionParams) error {
	return f.run(ctx, "event-detection", cellSets, eventSets)
}

func (f *FakeImaging) AutoAcceptReject(ctx context.Context, cellSets, eventSets []string, _ []imaging.Filter) error {
	return f.run(ctx, "auto-accept-reject", append(append([]string(nil), cellSets...), eventSets...), nil)
}

func (f *FakeImaging) Deconvolve(ctx context.Context, cellSets, spikeSets []string, _ imaging.DeconvolveParams) error {
	return f.run(ctx, "deconvolve-cellset", cellSets, spikeSets)
}

func (f *FakeImaging) ExportEventSet(ctx context.Context, eventSets []string, csvFile string) error {
	return f.run(ctx, "export-event-set", eventSets, []string{csvFile})
}

func (f *FakeImaging) DeltaFOverF(ctx context.Context, inputs, outputs []string) error {
	return f.run(ctx, "dff", inputs, outputs)
}

func (f *FakeImaging) LongitudinalRegistration(ctx context.Context, req imaging.RegistrationRequest) error {
	inputs := append(append([]string(nil), req.CellSets...), req.Movies...)
	outputs := append(append(append([]string(nil), req.OutputCellSets...), req.OutputMovies...), req.TableFile)
	return f.run(ctx, "longitudinal-registration", inputs, outputs)
}

func (f *FakeImaging) TrimMovie(ctx context.Context, input, output string, segments []imaging.Segment) error {
	f.record(Call{Op: "trim-movie", Inputs: []string{input}, Outputs: []string{output}, Segments: append([]imaging.Segment(nil), segments...)})
	if err := f.failure("trim-movie", []string{input}); err != nil {
		return err
	}
	return touch(output)
}
