package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

// ExecPlayer writes each clip to a temp file and hands it to an external
// command such as `ffplay -nodisp -autoexit -loglevel quiet {file}`.
type ExecPlayer struct {
	Command []string
	TempDir string
}

// NewExecPlayer splits a command line on whitespace. A "{file}" argument is
// replaced with the clip path, otherwise the path is appended.
func NewExecPlayer(commandLine string) (*ExecPlayer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("audio player command is empty")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("audio player %q not found: %w", fields[0], err)
	}
	return &ExecPlayer{Command: fields}, nil
}

func (p *ExecPlayer) Play(ctx context.Context, clip models.Clip) error {
	if len(clip.Payload) == 0 {
		return fmt.Errorf("clip %s has no payload", clip.ID)
	}

	f, err := os.CreateTemp(p.TempDir, "pitchtank-*"+extensionFor(clip.Format))
	if err != nil {
		return fmt.Errorf("failed to create clip file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(clip.Payload); err != nil {
		f.Close()
		return fmt.Errorf("failed to write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close clip file: %w", err)
	}

	args := make([]string, 0, len(p.Command))
	substituted := false
	for _, a := range p.Command[1:] {
		if a == "{file}" {
			a = path
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}

	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio player exited: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func extensionFor(format string) string {
	switch format {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	default:
		return ".mp3"
	}
}

// NullPlayer plays nothing but holds the slot for the clip's duration, keeping
// speaking indicators honest when no audio device is available.
type NullPlayer struct {
	Clock    clockwork.Clock
	Fallback time.Duration
}

func (p NullPlayer) Play(ctx context.Context, clip models.Clip) error {
	d := clip.Duration
	if d <= 0 {
		d = p.Fallback
	}
	if d <= 0 {
		return nil
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	select {
	case <-clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadCue reads a cue file into a clip. A blank path yields ok=false.
func LoadCue(path, speakerID string) (models.Clip, bool, error) {
	if path == "" {
		return models.Clip{}, false, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return models.Clip{}, false, fmt.Errorf("failed to read cue %s: %w", path, err)
	}
	format := "audio/mpeg"
	switch {
	case strings.HasSuffix(path, ".wav"):
		format = "audio/wav"
	case strings.HasSuffix(path, ".ogg"):
		format = "audio/ogg"
	}
	return models.Clip{
		ID:        "cue:" + path,
		SpeakerID: speakerID,
		Payload:   b,
		Format:    format,
	}, true, nil
}
