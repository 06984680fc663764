package imaging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"strata/internal/logging"
	"strata/internal/services"
)

// Executor abstracts command execution for testability. stdin is fed to the
// process and each stdout line is passed to onStdout.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the logger that receives bridge progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "imaging")
	}
}

// Client implements Capability by invoking the imaging bridge executable.
// Each operation runs "<binary> <operation>" with a JSON request on stdin; the
// last JSON object on stdout is the response.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

var _ Capability = (*Client)(nil)

// New constructs a bridge client. operationTimeoutSeconds of zero disables
// the per-operation limit.
func New(binary string, operationTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("imaging bridge binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(operationTimeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logging.NewNop(), "imaging"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the bridge executable name.
func (c *Client) Binary() string {
	return c.binary
}

// MovieInfo reads a recording's frame count and geometry.
func (c *Client) MovieInfo(ctx context.Context, path string) (MovieInfo, error) {
	var info MovieInfo
	if err := c.call(ctx, "movie-info", map[string]any{"input_movie_file": path}, &info); err != nil {
		return MovieInfo{}, err
	}
	if info.NumFrames < 0 || info.Width <= 0 || info.Height <= 0 {
		return MovieInfo{}, services.Wrap(services.ErrExternalOperation, "imaging", "movie-info",
			fmt.Sprintf("invalid geometry %dx%d with %d frames for %s", info.Width, info.Height, info.NumFrames, path), nil)
	}
	return info, nil
}

type frameResponse struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   string `json:"data"`
}

// ReadFrame returns one frame. The bridge encodes pixels as base64
// little-endian float32 values.
func (c *Client) ReadFrame(ctx context.Context, path string, index int) (Frame, error) {
	var resp frameResponse
	req := map[string]any{"input_movie_file": path, "frame_index": index}
	if err := c.call(ctx, "read-frame", req, &resp); err != nil {
		return Frame{}, err
	}
	frame, err := decodeFrame(resp)
	if err != nil {
		return Frame{}, services.Wrap(services.ErrExternalOperation, "imaging", "read-frame",
			fmt.Sprintf("%s frame %d", path, index), err)
	}
	return frame, nil
}

func decodeFrame(resp frameResponse) (Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return Frame{}, fmt.Errorf("decode pixels: %w", err)
	}
	want := resp.Width * resp.Height
	if resp.Width <= 0 || resp.Height <= 0 || len(raw) != want*4 {
		return Frame{}, fmt.Errorf("pixel payload %d bytes does not match %dx%d", len(raw), resp.Width, resp.Height)
	}
	pixels := make([]float32, want)
	for i := range pixels {
		pixels[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return Frame{Width: resp.Width, Height: resp.Height, Pixels: pixels}, nil
}

// EncodeFrame produces the wire form of pixels. It is used by fake bridges.
func EncodeFrame(f Frame) string {
	raw := make([]byte, len(f.Pixels)*4)
	for i, v := range f.Pixels {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func (c *Client) Preprocess(ctx context.Context, inputs, outputs []string, p PreprocessParams) error {
	return c.call(ctx, "preprocess", movieRequest(inputs, outputs, p), nil)
}

func (c *Client) SpatialFilter(ctx context.Context, inputs, outputs []string, p SpatialFilterParams) error {
	return c.call(ctx, "spatial-filter", movieRequest(inputs, outputs, p), nil)
}

func (c *Client) ProjectMovie(ctx context.Context, inputs []string, output string, stat Projection) error {
	req := map[string]any{"input_movie_files": inputs, "output_image_file": output, "stat_type": string(stat)}
	return c.call(ctx, "project-movie", req, nil)
}

func (c *Client) MotionCorrect(ctx context.Context, inputs, outputs []string, p MotionCorrectParams) error {
	return c.call(ctx, "motion-correct", movieRequest(inputs, outputs, p), nil)
}

func (c *Client) RunCNMFe(ctx context.Context, inputs, outputs []string, p CNMFeParams) error {
	req := map[string]any{"input_movie_files": inputs, "output_cell_set_files": outputs, "params": p}
	return c.call(ctx, "run-cnmfe", req, nil)
}

func (c *Client) ExportCellSet(ctx context.Context, cellSets []string, csvFile, tiffFile string) error {
	req := map[string]any{
		"input_cell_set_files": cellSets,
		"output_csv_file":      csvFile,
		"output_tiff_file":     tiffFile,
		"time_ref":             "start",
	}
	return c.call(ctx, "export-cell-set", req, nil)
}

func (c *Client) DetectEvents(ctx context.Context, cellSets, eventSets []string, p EventDetectionParams) error {
	req := map[string]any{"input_cell_set_files": cellSets, "output_event_set_files": eventSets, "params": p}
	return c.call(ctx, "event-detection", req, nil)
}

func (c *Client) AutoAcceptReject(ctx context.Context, cellSets, eventSets []string, filters []Filter) error {
	req := map[string]any{"input_cell_set_files": cellSets, "input_event_set_files": eventSets, "filters": filters}
	return c.call(ctx, "auto-accept-reject", req, nil)
}

func (c *Client) Deconvolve(ctx context.Context, cellSets, spikeSets []string, p DeconvolveParams) error {
	req := map[string]any{"input_raw_cellset_files": cellSets, "output_spike_eventset_files": spikeSets, "params": p}
	return c.call(ctx, "deconvolve-cellset", req, nil)
}

func (c *Client) ExportEventSet(ctx context.Context, eventSets []string, csvFile string) error {
	req := map[string]any{"input_event_set_files": eventSets, "output_csv_file": csvFile, "time_ref": "unix"}
	return c.call(ctx, "export-event-set", req, nil)
}

func (c *Client) DeltaFOverF(ctx context.Context, inputs, outputs []string) error {
	req := map[string]any{"input_movie_files": inputs, "output_movie_files": outputs, "f0_type": "mean"}
	return c.call(ctx, "dff", req, nil)
}

func (c *Client) LongitudinalRegistration(ctx context.Context, req RegistrationRequest) error {
	if len(req.CellSets) != len(req.OutputCellSets) || len(req.Movies) != len(req.OutputMovies) {
		return services.Wrap(services.ErrConfiguration, "imaging", "longitudinal-registration", "input/output length mismatch", nil)
	}
	return c.call(ctx, "longitudinal-registration", req, nil)
}

// TrimMovie writes a copy of input with the frames in segments removed.
func (c *Client) TrimMovie(ctx context.Context, input, output string, segments []Segment) error {
	crop := make([][2]int, len(segments))
	for i, s := range segments {
		crop[i] = [2]int{s.Start, s.End}
	}
	req := map[string]any{"input_movie_file": input, "output_movie_file": output, "crop_segments": crop}
	return c.call(ctx, "trim-movie", req, nil)
}

func movieRequest(inputs, outputs []string, params any) map[string]any {
	return map[string]any{"input_movie_files": inputs, "output_movie_files": outputs, "params": params}
}

// call runs one bridge operation. resp may be nil when the operation returns
// nothing but its files.
func (c *Client) call(ctx context.Context, op string, req any, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return services.Wrap(services.ErrExternalOperation, "imaging", op, "encode request", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, c.logger)
	start := time.Now()
	var last string
	err = c.exec.Run(ctx, c.binary, []string{op}, payload, func(line string) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") {
			last = line
			return
		}
		if line != "" {
			logger.Debug("bridge output", logging.String("operation", op), logging.String("line", line))
		}
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return services.Wrap(services.ErrExternalOperation, "imaging", op, "bridge failed", err)
	}
	logger.Debug("bridge operation complete",
		logging.String("operation", op),
		logging.Duration("duration", time.Since(start)),
	)
	if resp == nil {
		return nil
	}
	if last == "" {
		return services.Wrap(services.ErrExternalOperation, "imaging", op, "bridge produced no response", nil)
	}
	if err := json.Unmarshal([]byte(last), resp); err != nil {
		return services.Wrap(services.ErrExternalOperation, "imaging", op, "decode response", err)
	}
	return nil
}

type commandExecutor struct{}

const stderrTailLines = 20

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin []byte, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once
	var tail []string

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, func(line string) {
		if onStdout != nil {
			onStdout(line)
		}
	})
	go scan(stderr, func(line string) {
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
	})

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with status %s: %s", binary, strconv.Itoa(exitErr.ExitCode()), strings.Join(tail, "; "))
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
