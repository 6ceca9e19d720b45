// Package capture records the user's voice through an external recorder.
package capture

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnavailable      = errors.New("capture device unavailable")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// Recording is one finished take.
type Recording struct {
	Filename string
	Data     []byte
	Duration time.Duration
}

// Recorder is a microphone. Release frees the device and any partial take;
// it is safe to call at any time, any number of times.
type Recorder interface {
	Start() error
	Stop() (Recording, error)
	Recording() bool
	Release()
}

// ExecRecorder drives a command such as `arecord -q -f cd -t wav {file}`.
// The command must finish writing its file when sent an interrupt.
type ExecRecorder struct {
	Command   []string
	Extension string
	TempDir   string

	mu      sync.Mutex
	cmd     *exec.Cmd
	waitErr chan error
	path    string
	started time.Time
}

// NewExecRecorder returns ErrUnavailable when the recorder binary is missing,
// so callers can fall back to text-only input.
func NewExecRecorder(commandLine string) (*ExecRecorder, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no recorder configured", ErrUnavailable)
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &ExecRecorder{Command: fields, Extension: ".wav"}, nil
}

func (r *ExecRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return ErrAlreadyRecording
	}

	ext := r.Extension
	if ext == "" {
		ext = ".wav"
	}
	f, err := os.CreateTemp(r.TempDir, "pitchtank-take-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create take file: %w", err)
	}
	path := f.Name()
	f.Close()

	args := make([]string, 0, len(r.Command))
	substituted := false
	for _, a := range r.Command[1:] {
		if a == "{file}" {
			a = path
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}

	cmd := exec.Command(r.Command[0], args...)
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	r.cmd = cmd
	r.waitErr = waitErr
	r.path = path
	r.started = time.Now()

	log.Debug().Str("file", path).Int("pid", cmd.Process.Pid).Msg("recording started")
	return nil
}

func (r *ExecRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Stop interrupts the recorder, waits for it to flush and returns the take.
func (r *ExecRecorder) Stop() (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return Recording{}, ErrNotRecording
	}

	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		log.Warn().Err(err).Msg("failed to interrupt recorder")
	}
	select {
	case <-r.waitErr:
	case <-time.After(5 * time.Second):
		r.cmd.Process.Kill()
		<-r.waitErr
	}

	path := r.path
	duration := time.Since(r.started)
	r.reset()
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to read take: %w", err)
	}
	if len(data) == 0 {
		return Recording{}, fmt.Errorf("recorder produced no audio")
	}
	return Recording{
		Filename: filepath.Base(path),
		Data:     data,
		Duration: duration,
	}, nil
}

func (r *ExecRecorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return
	}
	r.cmd.Process.Kill()
	<-r.waitErr
	os.Remove(r.path)
	r.reset()

	log.Debug().Msg("capture device released")
}

func (r *ExecRecorder) reset() {
	r.cmd = nil
	r.waitErr = nil
	r.path = ""
	r.started = time.Time{}
}

// Unavailable is the recorder used in text-only mode.
type Unavailable struct{}

func (Unavailable) Start() error             { return ErrUnavailable }
func (Unavailable) Stop() (Recording, error) { return Recording{}, ErrNotRecording }
func (Unavailable) Recording() bool          { return false }
func (Unavailable) Release()                 {}
