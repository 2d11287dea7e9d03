package viewer

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

const armModel = `
name: arm
segments:
  - name: upper
    dofs: [rotY]
    com: [0, 0, -0.5]
    markers:
      - name: elbow
        position: [0, 0, -1]
  - name: lower
    parent: upper
    translation: [0, 0, -1]
    dofs: [rotY]
    com: [0, 0, -0.5]
    markers:
      - name: wrist
        position: [0, 0, -1]
`

type stubRecorder struct {
	frames int
	closed bool
}

func (r *stubRecorder) CaptureFrame() error { r.frames++; return nil }
func (r *stubRecorder) Close() error        { r.closed = true; return nil }

type stubSurface struct {
	dirty     bool
	draws     int
	snapshots []string
	recPath   string
	recFPS    float64
	rec       *stubRecorder
}

func (s *stubSurface) RequestRedraw()             { s.dirty = true }
func (s *stubSurface) NeedsRedraw() bool          { return s.dirty }
func (s *stubSurface) Draw(*scene.Synchronizer)   { s.draws++; s.dirty = false }
func (s *stubSurface) Resize(width, height int)   {}
func (s *stubSurface) Snapshot(path string, _ *scene.Synchronizer) error {
	s.snapshots = append(s.snapshots, path)
	return nil
}

func (s *stubSurface) Record(path string, fps float64, _ *scene.Synchronizer) (playback.Recorder, error) {
	s.recPath, s.recFPS = path, fps
	s.rec = &stubRecorder{}
	return s.rec, nil
}

func newTestViewer(t *testing.T) (*Viewer, *stubSurface) {
	t.Helper()
	m, err := model.Parse([]byte(armModel))
	require.NoError(t, err)
	surf := &stubSurface{}
	cfg := config.Default()
	cfg.Playback.IgnoreAnimationWarning = true
	v, err := New(m, surf, camera.New(), cfg, zap.NewNop())
	require.NoError(t, err)
	return v, surf
}

func TestSetQMovesPoseAndScene(t *testing.T) {
	v, surf := newTestViewer(t)

	require.NoError(t, v.SetQ([]float64{math.Pi / 2, 0}))

	assert.Equal(t, []float64{math.Pi / 2, 0}, v.Q())
	// The shoulder rotation swings the elbow marker onto -X in the same call.
	elbow := v.Synchronizer().Markers.At(0).Pos
	assert.InDelta(t, -1, elbow.X, 1e-12)
	assert.InDelta(t, 0, elbow.Z, 1e-12)
	assert.True(t, surf.NeedsRedraw())
}

func TestSetQWrongDimension(t *testing.T) {
	v, _ := newTestViewer(t)
	assert.ErrorIs(t, v.SetQ([]float64{1, 2, 3}), scene.ErrShapeMismatch)
}

func TestResetQ(t *testing.T) {
	v, _ := newTestViewer(t)
	require.NoError(t, v.SetQ([]float64{0.7, -0.2}))
	require.NoError(t, v.ResetQ())
	assert.Equal(t, []float64{0, 0}, v.Q())
}

func TestLoadMovement(t *testing.T) {
	v, _ := newTestViewer(t)

	motion := mat.NewDense(5, 2, nil)
	for i := 0; i < 5; i++ {
		motion.Set(i, 0, float64(i)*0.1)
	}
	require.NoError(t, v.LoadMovement(motion))

	assert.Equal(t, playback.ModePaused, v.Controller().Mode())
	assert.Equal(t, 1, v.Controller().Cursor())
	assert.Equal(t, []float64{0, 0}, v.Q())

	require.NoError(t, v.SetFrame(3))
	assert.Equal(t, []float64{0.2, 0}, v.Q())
}

func TestLoadMovementWrongColumns(t *testing.T) {
	v, _ := newTestViewer(t)
	assert.ErrorIs(t, v.LoadMovement(mat.NewDense(5, 3, nil)), scene.ErrShapeMismatch)
}

func TestLoadMovementAutoStart(t *testing.T) {
	v, _ := newTestViewer(t)
	v.cfg.Playback.AutoStart = true
	require.NoError(t, v.LoadMovement(mat.NewDense(5, 2, nil)))
	assert.Equal(t, playback.ModePlaying, v.Controller().Mode())
}

func TestLoadExperimentalMarkersMatchesLabels(t *testing.T) {
	v, _ := newTestViewer(t)

	c := &formats.C3D{
		PointLabels: []string{"Subject:WRIST", "ELBOW", "EXTRA"},
		Units:       "mm",
		PointRate:   100,
		FirstFrame:  1,
		Points: [][]r3.Vec{
			{{X: 1000}, {Y: 2000}, {X: 7, Y: 7, Z: 7}},
			{{X: 1500}, {Y: 2500}, {X: 7, Y: 7, Z: 7}},
		},
	}
	require.NoError(t, v.LoadExperimentalMarkers(c))

	// Model marker order (elbow, wrist), millimeters converted to meters.
	exp := v.Synchronizer().ExperimentalMarkers
	require.Equal(t, 2, exp.Len())
	assert.InDelta(t, 2, exp.At(0).Pos.Y, 1e-12)
	assert.InDelta(t, 1, exp.At(1).Pos.X, 1e-12)

	require.NoError(t, v.SetFrame(2))
	assert.InDelta(t, 2.5, exp.At(0).Pos.Y, 1e-12)
	assert.InDelta(t, 1.5, exp.At(1).Pos.X, 1e-12)
}

func TestLoadExperimentalMarkersNoLabelMatch(t *testing.T) {
	v, _ := newTestViewer(t)

	c := &formats.C3D{
		PointLabels: []string{"A", "B", "C"},
		Units:       "m",
		PointRate:   100,
		FirstFrame:  1,
		Points:      [][]r3.Vec{{{X: 1}, {X: 2}, {X: 3}}},
	}
	require.NoError(t, v.LoadExperimentalMarkers(c))

	// Nothing matched, so the capture is shown in its own order.
	exp := v.Synchronizer().ExperimentalMarkers
	require.Equal(t, 3, exp.Len())
	assert.Equal(t, 3.0, exp.At(2).Pos.X)
}

func TestCaptureOnlyPlayback(t *testing.T) {
	v, _ := newTestViewer(t)

	c := &formats.C3D{
		PointLabels: []string{"ELBOW"},
		Units:       "m",
		PointRate:   100,
		FirstFrame:  1,
		Points: [][]r3.Vec{
			{{X: 1}}, {{X: 2}}, {{X: 3}}, {{X: 4}},
		},
	}
	require.NoError(t, v.LoadExperimentalMarkers(c))

	assert.Equal(t, 4, v.Controller().Source().Frames())
	require.NoError(t, v.SetFrame(3))
	assert.Equal(t, 3.0, v.Synchronizer().ExperimentalMarkers.At(0).Pos.X)
}

func TestSnapshotAndRecordDelegation(t *testing.T) {
	v, surf := newTestViewer(t)

	require.NoError(t, v.Snapshot("shot.png"))
	assert.Equal(t, []string{"shot.png"}, surf.snapshots)

	require.NoError(t, v.LoadMovement(mat.NewDense(3, 2, nil)))
	require.NoError(t, v.Record("out.ogv"))
	assert.Equal(t, "out.ogv", surf.recPath)
	assert.Equal(t, v.cfg.Playback.FPS, surf.recFPS)
	assert.True(t, v.Controller().Recording())

	v.Play()
	require.NoError(t, v.advance())
	assert.Equal(t, 1, surf.rec.frames)

	require.NoError(t, v.StopRecording())
	assert.True(t, surf.rec.closed)
	assert.False(t, v.Controller().Recording())
}

func TestExportEventsWithoutCapture(t *testing.T) {
	v, _ := newTestViewer(t)
	assert.ErrorIs(t, v.ExportEvents("out.c3d"), ErrNoCapture)
}

func TestExportEventsRoundTrip(t *testing.T) {
	v, _ := newTestViewer(t)

	c := &formats.C3D{
		PointLabels: []string{"ELBOW"},
		Units:       "m",
		PointRate:   100,
		FirstFrame:  10,
		Points: [][]r3.Vec{
			{{X: 1}}, {{X: 2}}, {{X: 3}}, {{X: 4}}, {{X: 5}},
		},
	}
	require.NoError(t, v.LoadExperimentalMarkers(c))
	_, err := v.Controller().Events().Set(3, "heel strike")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.c3d")
	require.NoError(t, v.ExportEvents(path))

	back, err := formats.ReadC3D(path)
	require.NoError(t, err)
	require.Len(t, back.Events, 1)
	assert.Equal(t, "heel strike", back.Events[0].Label)
	// Frame 3 with trim start 1 and container start 10 lands on absolute
	// frame 12 at 100 Hz.
	assert.InDelta(t, 0.12, back.Events[0].Time, 1e-6)
}
