// Package viewer ties the model, the scene synchronizer, the playback
// controller and the render surface into one interactive application.
package viewer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/openkin/skelviz/internal/config"
	"github.com/openkin/skelviz/internal/engine/camera"
	"github.com/openkin/skelviz/internal/model"
	"github.com/openkin/skelviz/internal/playback"
	"github.com/openkin/skelviz/internal/scene"
	"github.com/openkin/skelviz/pkg/formats"
)

// ErrNoCapture is returned when an operation needs an experimental capture
// and none is loaded.
var ErrNoCapture = errors.New("no experimental capture loaded")

// RenderSurface is what the viewer needs from the GL side. It doubles as
// the redraw sink for the scene collections.
type RenderSurface interface {
	scene.Redrawer
	NeedsRedraw() bool
	Draw(sync *scene.Synchronizer)
	Resize(width, height int)
	Snapshot(path string, sync *scene.Synchronizer) error
	Record(path string, fps float64, sync *scene.Synchronizer) (playback.Recorder, error)
}

// Viewer is the application root. All methods run on the loop goroutine.
type Viewer struct {
	log     *zap.Logger
	cfg     *config.Config
	model   *model.Model
	surface RenderSurface
	cam     *camera.Camera

	sync    *scene.Synchronizer
	control *playback.Controller

	motion        *mat.Dense
	capture       *formats.C3D
	capturePoints [][]r3.Vec // meters
	markerMap     []int      // model marker -> capture column, nil for capture order

	stop bool
}

// New builds a viewer around a loaded model. The camera starts at the
// configured zoom and roll, looking at the origin, and the model is put in
// its zero pose.
func New(m *model.Model, surface RenderSurface, cam *camera.Camera, cfg *config.Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	control := playback.NewController(log)
	control.IgnoreNoLoopWarning = cfg.Playback.IgnoreAnimationWarning

	cam.SetRoll(cfg.Camera.Roll * math.Pi / 180)
	if cfg.Camera.Zoom > 0 {
		cam.SetZoom(cfg.Camera.Zoom)
	}

	v := &Viewer{
		log:     log,
		cfg:     cfg,
		model:   m,
		surface: surface,
		cam:     cam,
		sync:    scene.NewSynchronizer(m, showLayers(cfg.Display), surface),
		control: control,
	}

	if cfg.Display.Floor {
		if err := v.sync.SetFloor(r3.Vec{}, cfg.Display.FloorSize); err != nil {
			return nil, err
		}
	}
	if err := v.ResetQ(); err != nil {
		return nil, err
	}
	return v, nil
}

// showLayers translates the config section into the synchronizer's layer
// switches. Force arrows have no config toggle; the layer stays enabled
// and simply holds no arrows until UpdateForces is called.
func showLayers(d config.DisplayConfig) scene.Layers {
	return scene.Layers{
		Markers:             d.Markers,
		ExperimentalMarkers: d.ExperimentalMarkers,
		CenterOfMass:        d.CenterOfMass,
		SegmentCenterOfMass: d.SegmentCenterOfMass,
		SegmentFrames:       d.SegmentFrames,
		Meshes:              d.Meshes,
		Muscles:             d.Muscles,
		Ligaments:           d.Ligaments,
		Contacts:            d.Contacts,
		SoftContacts:        d.SoftContacts,
		Wrappings:           d.Wrappings,
		Forces:              true,
		Gravity:             d.Gravity,
		Floor:               d.Floor,
	}
}

// Synchronizer exposes the scene for layer toggles and direct updates.
func (v *Viewer) Synchronizer() *scene.Synchronizer { return v.sync }

// Controller exposes playback state, trim bounds and the event ledger.
func (v *Viewer) Controller() *playback.Controller { return v.control }

// Camera returns the viewer's camera.
func (v *Viewer) Camera() *camera.Camera { return v.cam }

// Model returns the loaded model.
func (v *Viewer) Model() *model.Model { return v.model }

// SetQ applies a pose. The stored pose and every enabled collection move
// in the same call; there is no window where they disagree.
func (v *Viewer) SetQ(q []float64) error { return v.sync.ApplyPose(q) }

// Q returns a copy of the current pose.
func (v *Viewer) Q() []float64 { return v.sync.Pose().Q() }

// ResetQ returns the model to its zero pose.
func (v *Viewer) ResetQ() error { return v.SetQ(make([]float64, v.model.NQ())) }

// ToggleSegments flips segment visibility and re-applies the current pose.
func (v *Viewer) ToggleSegments(segments ...int) error {
	return v.sync.ToggleSegments(segments...)
}

// LoadMovement loads a movement matrix (frames x nQ) and rewinds to the
// first frame. With auto-start configured, playback begins immediately.
func (v *Viewer) LoadMovement(motion *mat.Dense) error {
	if motion != nil {
		if _, cols := motion.Dims(); cols != v.model.NQ() {
			return fmt.Errorf("%w: movement has %d coordinates, model has %d",
				scene.ErrShapeMismatch, cols, v.model.NQ())
		}
	}
	v.motion = motion
	v.control.Load(playback.NewSource(motion, len(v.capturePoints)))
	if err := v.applyFrame(); err != nil {
		return err
	}
	if v.cfg.Playback.AutoStart {
		v.control.Play()
	}
	return nil
}

// LoadMovementFile reads a movement from an NPY or legacy MAT file.
func (v *Viewer) LoadMovementFile(path string) error {
	motion, err := formats.ReadMotion(path)
	if err != nil {
		return err
	}
	v.log.Info("movement file read", zap.String("path", path))
	return v.LoadMovement(motion)
}

// LoadExperimentalMarkers loads a capture. Coordinates are converted to
// meters when the capture is in millimeters, and capture labels are
// matched to model marker names; a capture with no matching label at all
// is shown in its own order instead.
func (v *Viewer) LoadExperimentalMarkers(c *formats.C3D) error {
	scale := 1.0
	if strings.EqualFold(strings.TrimSpace(c.Units), "mm") {
		scale = 0.001
	}
	points := make([][]r3.Vec, len(c.Points))
	for i, frame := range c.Points {
		scaled := make([]r3.Vec, len(frame))
		for j, p := range frame {
			scaled[j] = r3.Scale(scale, p)
		}
		points[i] = scaled
	}

	v.capture = c
	v.capturePoints = points
	v.markerMap = matchLabels(v.model.MarkerNames(), c.PointLabels)
	v.control.Load(playback.NewSource(v.motion, len(points)))
	v.log.Info("experimental capture loaded",
		zap.Int("frames", len(points)),
		zap.Int("points", len(c.PointLabels)),
		zap.Bool("labels_matched", v.markerMap != nil))
	return v.applyFrame()
}

// LoadExperimentalMarkersFile reads a C3D capture from disk.
func (v *Viewer) LoadExperimentalMarkersFile(path string) error {
	c, err := formats.ReadC3D(path)
	if err != nil {
		return err
	}
	return v.LoadExperimentalMarkers(c)
}

// applyFrame pushes the cursor's pose and capture frame into the scene.
func (v *Viewer) applyFrame() error {
	if q := v.control.Pose(); q != nil {
		if err := v.sync.ApplyPose(q); err != nil {
			return err
		}
	}
	if len(v.capturePoints) > 0 && v.sync.Show.ExperimentalMarkers {
		return v.sync.UpdateExperimentalMarkers(v.captureFrame(v.control.Cursor()))
	}
	return nil
}

// captureFrame returns the capture points under the cursor, reordered to
// model marker order when labels matched. A capture shorter than the
// movement holds its last frame.
func (v *Viewer) captureFrame(frame int) []r3.Vec {
	idx := frame - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(v.capturePoints) {
		idx = len(v.capturePoints) - 1
	}
	pts := v.capturePoints[idx]
	if v.markerMap == nil {
		return pts
	}
	nan := math.NaN()
	out := make([]r3.Vec, len(v.markerMap))
	for i, col := range v.markerMap {
		if col >= 0 && col < len(pts) {
			out[i] = pts[col]
		} else {
			out[i] = r3.Vec{X: nan, Y: nan, Z: nan}
		}
	}
	return out
}

// Play starts playback.
func (v *Viewer) Play() { v.control.Play() }

// Pause pauses playback.
func (v *Viewer) Pause() { v.control.Pause() }

// TogglePlay flips between playing and paused.
func (v *Viewer) TogglePlay() { v.control.TogglePlay() }

// SetFrame moves the cursor and applies that frame.
func (v *Viewer) SetFrame(frame int) error {
	v.control.SetCursor(frame)
	return v.applyFrame()
}

// advance moves one frame forward, capturing when a recording is active.
func (v *Viewer) advance() error {
	if err := v.control.Tick(); err != nil {
		return err
	}
	return v.applyFrame()
}

// Snapshot writes the current scene to a PNG file.
func (v *Viewer) Snapshot(path string) error {
	return v.surface.Snapshot(path, v.sync)
}

// Record starts recording playback to an OGV file at the playback rate.
func (v *Viewer) Record(path string) error {
	rec, err := v.surface.Record(path, v.cfg.Playback.FPS, v.sync)
	if err != nil {
		return err
	}
	v.control.StartRecording(rec)
	return nil
}

// StopRecording finalizes an in-flight recording.
func (v *Viewer) StopRecording() error { return v.control.StopRecording() }

// ExportEvents writes the loaded capture back out with the event ledger
// merged into its EVENT parameters.
func (v *Viewer) ExportEvents(path string) error {
	if v.capture == nil {
		return ErrNoCapture
	}
	out := *v.capture
	out.Events = v.control.Events().Export(
		v.control.FirstFrame(), v.capture.FirstFrame, v.capture.PointRate)
	return formats.WriteC3D(path, &out)
}
