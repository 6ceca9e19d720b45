package capture

import (
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"
)

func shRecorder(t *testing.T, script string) *ExecRecorder {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return &ExecRecorder{
		Command:   []string{"sh", "-c", script, "rec", "{file}"},
		Extension: ".wav",
		TempDir:   t.TempDir(),
	}
}

func waitForTake(t *testing.T, r *ExecRecorder) {
	t.Helper()
	r.mu.Lock()
	path := r.path
	r.mu.Unlock()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("recorder never wrote its take")
}

func TestStartStopReturnsTake(t *testing.T) {
	r := shRecorder(t, `trap 'exit 0' INT; printf RIFFDATA > "$1"; while :; do sleep 0.05; done`)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.Recording() {
		t.Fatal("want recording after Start")
	}
	if err := r.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start: got %v, want ErrAlreadyRecording", err)
	}

	waitForTake(t, r)
	rec, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if string(rec.Data) != "RIFFDATA" {
		t.Errorf("take: got %q", rec.Data)
	}
	if r.Recording() {
		t.Error("still recording after Stop")
	}

	entries, _ := os.ReadDir(r.TempDir)
	if len(entries) != 0 {
		t.Errorf("take file left behind: %d entries", len(entries))
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := shRecorder(t, `while :; do sleep 0.05; done`)

	r.Release()
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Release()
	r.Release()

	if r.Recording() {
		t.Error("still recording after Release")
	}
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop after Release: got %v, want ErrNotRecording", err)
	}
}

func TestMissingRecorderIsUnavailable(t *testing.T) {
	_, err := NewExecRecorder("definitely-not-a-recorder-binary -q")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
	if _, err := NewExecRecorder(""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty command: got %v, want ErrUnavailable", err)
	}

	var u Unavailable
	if err := u.Start(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Unavailable.Start: got %v", err)
	}
	u.Release()
}
