package render

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/openkin/skelviz/internal/playback"
	"github.com/openkin/skelviz/internal/scene"
	"github.com/openkin/skelviz/pkg/formats"
)

// Recorder encodes captured frames into an Ogg Theora video by piping raw
// RGBA frames to ffmpeg. There is no native Go Theora encoder, so ffmpeg
// must be on PATH.
type Recorder struct {
	surface *Surface
	sync    *scene.Synchronizer
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	width   int
	height  int
	frames  int
}

// NewRecorder starts an ffmpeg process writing to path. Only the .ogv
// container is supported.
func NewRecorder(path string, fps float64, surface *Surface, sync *scene.Synchronizer) (*Recorder, error) {
	if strings.ToLower(filepath.Ext(path)) != ".ogv" {
		return nil, fmt.Errorf("%w: recordings are OGV only, got %s", formats.ErrUnsupportedFormat, filepath.Ext(path))
	}

	width, height := surface.Size()
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", fmt.Sprintf("%g", fps),
		"-i", "-",
		"-vf", "vflip",
		"-c:v", "libtheora",
		"-qscale:v", "7",
		path,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg (is it installed?): %w", err)
	}
	slog.Info("recording started", "path", path, "width", width, "height", height, "fps", fps)

	return &Recorder{
		surface: surface,
		sync:    sync,
		cmd:     cmd,
		stdin:   stdin,
		width:   width,
		height:  height,
	}, nil
}

// Record starts a recording bound to this surface.
func (s *Surface) Record(path string, fps float64, sync *scene.Synchronizer) (playback.Recorder, error) {
	rec, err := NewRecorder(path, fps, s, sync)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CaptureFrame renders the current scene offscreen and feeds it to the
// encoder. A write failure propagates so no frame is silently dropped.
func (r *Recorder) CaptureFrame() error {
	w, h := r.surface.Size()
	if w != r.width || h != r.height {
		return fmt.Errorf("surface resized during recording: %dx%d, recording at %dx%d", w, h, r.width, r.height)
	}
	pixels := r.surface.renderCapture(r.sync)
	if _, err := r.stdin.Write(pixels); err != nil {
		return fmt.Errorf("writing frame to encoder: %w", err)
	}
	r.frames++
	return nil
}

// Close finalizes the video.
func (r *Recorder) Close() error {
	if err := r.stdin.Close(); err != nil {
		return fmt.Errorf("closing encoder pipe: %w", err)
	}
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	slog.Info("recording finished", "frames", r.frames)
	return nil
}
