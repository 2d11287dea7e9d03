package playback

import (
	"fmt"

	"go.uber.org/zap"
)

// Mode is the controller state.
type Mode int

const (
	// ModeIdle means no movement or capture is loaded.
	ModeIdle Mode = iota
	// ModePaused means the cursor is valid but not advancing.
	ModePaused
	// ModePlaying means Tick advances the cursor.
	ModePlaying
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePaused:
		return "paused"
	case ModePlaying:
		return "playing"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Recorder captures the rendered frame under the cursor and finalizes the
// output on Close.
type Recorder interface {
	CaptureFrame() error
	Close() error
}

// Controller owns the playback cursor, the trim bounds and the event
// ledger. Frames are 1-based throughout.
type Controller struct {
	log *zap.Logger

	mode   Mode
	cursor int
	first  int
	last   int

	source *Source
	events *Ledger

	recorder Recorder

	loopActive          bool
	warnedNoLoop        bool
	IgnoreNoLoopWarning bool
}

// NewController returns an idle controller. A nil logger is replaced with a
// no-op one.
func NewController(log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{log: log, events: NewLedger()}
}

func (c *Controller) Mode() Mode      { return c.mode }
func (c *Controller) Cursor() int     { return c.cursor }
func (c *Controller) FirstFrame() int { return c.first }
func (c *Controller) LastFrame() int  { return c.last }
func (c *Controller) Source() *Source { return c.source }
func (c *Controller) Events() *Ledger { return c.events }

// Recording reports whether frames are being captured.
func (c *Controller) Recording() bool { return c.recorder != nil }

// Load installs a new source: the cursor rewinds to 1 and the trim bounds
// cover the whole movement. Playback is paused, never auto-resumed.
func (c *Controller) Load(src *Source) {
	c.source = src
	c.mode = ModePaused
	c.cursor = 1
	c.first = 1
	c.last = src.Frames()
	c.log.Info("movement loaded",
		zap.Int("frames", src.Frames()),
		zap.Int("nq", src.NQ()))
}

// Pose returns the pose under the cursor.
func (c *Controller) Pose() []float64 {
	if c.source == nil {
		return nil
	}
	return c.source.PoseAt(c.cursor)
}

// SetCursor moves the cursor, clamped to the trim bounds.
func (c *Controller) SetCursor(frame int) {
	if c.source == nil {
		return
	}
	if frame < c.first {
		frame = c.first
	}
	if frame > c.last {
		frame = c.last
	}
	c.cursor = frame
}

// SetLoopActive tells the controller whether a render loop is pumping
// ticks. Playing without one is legal but pointless, hence the warning.
func (c *Controller) SetLoopActive(active bool) { c.loopActive = active }

// Play starts advancing. The first Play without an active render loop logs
// a one-time warning; nothing else happens differently.
func (c *Controller) Play() {
	if c.source == nil {
		return
	}
	if !c.loopActive && !c.warnedNoLoop && !c.IgnoreNoLoopWarning {
		c.warnedNoLoop = true
		c.log.Warn("playback started without a running render loop; the cursor will not advance until Exec is called")
	}
	c.mode = ModePlaying
}

// Pause stops advancing without moving the cursor.
func (c *Controller) Pause() {
	if c.mode == ModePlaying {
		c.mode = ModePaused
	}
}

// TogglePlay flips between playing and paused.
func (c *Controller) TogglePlay() {
	switch c.mode {
	case ModePlaying:
		c.Pause()
	case ModePaused:
		c.Play()
	}
}

// SetFirstFrame moves the lower trim bound. The bound is clamped to the
// movement and pulls the last frame up when it would cross it.
func (c *Controller) SetFirstFrame(frame int) {
	if c.source == nil {
		return
	}
	if frame < 1 {
		frame = 1
	}
	if max := c.source.Frames(); frame > max {
		frame = max
	}
	c.first = frame
	if c.last < c.first {
		c.last = c.first
	}
	c.SetCursor(c.cursor)
}

// SetLastFrame moves the upper trim bound, pulling the first frame down
// when it would cross it.
func (c *Controller) SetLastFrame(frame int) {
	if c.source == nil {
		return
	}
	if frame < 1 {
		frame = 1
	}
	if max := c.source.Frames(); frame > max {
		frame = max
	}
	c.last = frame
	if c.first > c.last {
		c.first = c.last
	}
	c.SetCursor(c.cursor)
}

// StartRecording attaches a recorder; every subsequent tick captures a
// frame until the last frame is reached or StopRecording is called.
func (c *Controller) StartRecording(r Recorder) {
	c.recorder = r
}

// StopRecording finalizes the recorder.
func (c *Controller) StopRecording() error {
	if c.recorder == nil {
		return nil
	}
	err := c.recorder.Close()
	c.recorder = nil
	if err != nil {
		return fmt.Errorf("finalizing recording: %w", err)
	}
	return nil
}

// Tick advances the cursor one frame while playing. At or past the last
// frame the cursor wraps to first+1, matching a loop that re-enters the
// trimmed range one step in. While recording, each tick captures the frame
// and reaching the last frame pauses playback and finalizes the recording;
// a capture failure propagates, frames are never silently skipped.
func (c *Controller) Tick() error {
	if c.mode != ModePlaying {
		return nil
	}
	if c.cursor >= c.last {
		c.cursor = c.first + 1
		if c.cursor > c.last {
			c.cursor = c.last
		}
	} else {
		c.cursor++
	}

	if c.recorder == nil {
		return nil
	}
	if err := c.recorder.CaptureFrame(); err != nil {
		return fmt.Errorf("capturing frame %d: %w", c.cursor, err)
	}
	if c.cursor >= c.last {
		c.mode = ModePaused
		return c.StopRecording()
	}
	return nil
}
