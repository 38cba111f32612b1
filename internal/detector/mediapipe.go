package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

const (
	// startTimeout bounds how long the Python service may take to load its model.
	startTimeout = 20 * time.Second
	// idleTimeout shuts the service down after this long without a frame.
	idleTimeout = 30 * time.Second
	// responseTimeout bounds one frame's round trip to the service.
	responseTimeout = 2 * time.Second
)

// errNoResponse is returned when the service does not answer a frame in time.
var errNoResponse = errors.New("mediapipe service did not respond")

// MediaPipeSource implements LandmarkSource using a Python MediaPipe subprocess.
//
// The service reads a 4-byte big-endian length followed by a JPEG frame on
// stdin and answers with one JSON line per frame. It prints {"ready":true}
// once the hand landmarker model has loaded.
type MediaPipeSource struct {
	config     Config
	scriptPath string
	pythonPath string

	mu        sync.Mutex
	state     State
	closed    bool
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeSource creates a new MediaPipe landmark source.
// The Python process is started asynchronously by Start or the first Detect.
func NewMediaPipeSource(config Config) (*MediaPipeSource, error) {
	scriptPath := config.Script
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("mediapipe_service.py not found: %w", ErrUnavailable)
	}

	pythonPath := config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return &MediaPipeSource{
		config:     config,
		scriptPath: scriptPath,
		pythonPath: pythonPath,
	}, nil
}

// State reports the current lifecycle state.
func (d *MediaPipeSource) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start begins loading the service in the background. It returns immediately;
// poll State or call Detect to find out when the source is ready.
func (d *MediaPipeSource) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startLocked(ctx)
}

func (d *MediaPipeSource) startLocked(ctx context.Context) {
	if d.closed || d.state != StateIdle {
		return
	}
	d.state = StateStarting
	go d.launch(ctx)
}

// launch starts the subprocess and waits for its ready line without holding
// the lock, so Detect keeps answering ErrNotReady meanwhile.
func (d *MediaPipeSource) launch(ctx context.Context) {
	cmd := exec.Command(d.pythonPath, d.scriptPath,
		"--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
		"--max-hands", "1",
	)

	stdin, stdout, err := startService(ctx, cmd)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.state = StateFailed
		log.Error().Err(err).Str("script", d.scriptPath).Msg("mediapipe service failed to start")
		return
	}

	if d.closed {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = stdout
	d.state = StateReady
	d.lastUsed = time.Now()
	d.resetIdleTimer()
	log.Info().Str("python", d.pythonPath).Msg("mediapipe service ready")
}

func startService(ctx context.Context, cmd *exec.Cmd) (io.WriteCloser, *bufio.Reader, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start mediapipe service: %w", err)
	}

	stdout := bufio.NewReader(stdoutPipe)
	ready := make(chan error, 1)
	go func() {
		line, err := stdout.ReadString('\n')
		if err != nil {
			ready <- fmt.Errorf("read ready line: %w", err)
			return
		}
		var msg struct {
			Ready bool   `json:"ready"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			ready <- fmt.Errorf("parse ready line: %w", err)
			return
		}
		if !msg.Ready {
			ready <- fmt.Errorf("service reported: %s", msg.Error)
			return
		}
		ready <- nil
	}()

	select {
	case err = <-ready:
	case <-time.After(startTimeout):
		err = fmt.Errorf("service not ready after %s", startTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, nil, err
	}
	return stdin, stdout, nil
}

// Detect analyzes a frame and returns the most confident hand, if any.
func (d *MediaPipeSource) Detect(frame *gocv.Mat, timestampMs int64) (*HandPose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateFailed:
		return nil, ErrUnavailable
	case StateIdle:
		d.startLocked(context.Background())
		return nil, ErrNotReady
	case StateStarting:
		return nil, ErrNotReady
	}

	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	line, err := exchange(d.stdin, d.stdout, buf.GetBytes(), responseTimeout)
	if err != nil {
		// The pipe is broken or the service hung. Drop the process so the
		// next tick starts a fresh one.
		d.abort(err)
		return nil, err
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	hands := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		hands = append(hands, h.toHandLandmarks())
	}

	best := pickBest(hands)
	if best == nil {
		return nil, nil
	}
	return &HandPose{Landmarks: *best, TimestampMs: timestampMs}, nil
}

// exchange writes one length-prefixed frame and reads the reply line. It gives
// up after timeout; the caller must then kill the service, which unblocks the
// abandoned reader.
func exchange(w io.Writer, r *bufio.Reader, data []byte, timeout time.Duration) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		// Write length (4 bytes big-endian) + data
		length := make([]byte, 4)
		binary.BigEndian.PutUint32(length, uint32(len(data)))

		if _, err := w.Write(length); err != nil {
			done <- result{err: fmt.Errorf("write length: %w", err)}
			return
		}
		if _, err := w.Write(data); err != nil {
			done <- result{err: fmt.Errorf("write data: %w", err)}
			return
		}
		line, err := r.ReadString('\n')
		if err != nil {
			done <- result{err: fmt.Errorf("read response: %w", err)}
			return
		}
		done <- result{line: line}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.line, res.err
	case <-timer.C:
		return "", fmt.Errorf("%w after %s", errNoResponse, timeout)
	}
}

// abort kills a broken service and returns the source to StateIdle.
// Caller must hold d.mu.
func (d *MediaPipeSource) abort(cause error) {
	if d.state != StateReady {
		return
	}
	log.Warn().Err(cause).Msg("mediapipe service lost, restarting")
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	if err := d.shutdown(); err != nil {
		log.Debug().Err(err).Msg("mediapipe service exited")
	}
}

// Close shuts down the Python process. A closed source cannot be restarted.
func (d *MediaPipeSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.shutdown()
}

func (d *MediaPipeSource) shutdown() error {
	if d.state != StateReady {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.state = StateIdle
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeSource) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if time.Since(d.lastUsed) < idleTimeout {
			return
		}
		if err := d.shutdown(); err != nil {
			log.Debug().Err(err).Msg("mediapipe service exited")
		}
	})
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".tinsel/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".tinsel/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	copy(lm.Points[:], h.Points)
	return lm
}
