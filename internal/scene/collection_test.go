package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type countingRedrawer struct {
	requests int
}

func (r *countingRedrawer) RequestRedraw() { r.requests++ }

func points(coords ...float64) []*Point {
	out := make([]*Point, len(coords))
	for i, x := range coords {
		out[i] = &Point{Pos: r3.Vec{X: x}, Radius: 0.01}
	}
	return out
}

func TestCollectionRejectsMultiFrameBatch(t *testing.T) {
	c := NewCollection[*Point]("markers", nil)

	err := c.Update(Batch[*Point]{Frames: 3, Items: points(1, 2, 3)})
	require.ErrorIs(t, err, ErrInvalidFrameCount)
	assert.Zero(t, c.Len())
}

func TestCollectionInPlaceUpdateKeepsHandles(t *testing.T) {
	c := NewCollection[*Point]("markers", nil)
	require.NoError(t, c.Update(OneFrame(points(1, 2, 3))))

	h := c.Handle(1)
	live := c.At(1)
	gen := c.Generation()

	require.NoError(t, c.Update(OneFrame(points(4, 5, 6))))

	assert.Equal(t, gen, c.Generation())
	assert.True(t, c.Valid(h))
	assert.Same(t, live, c.At(1), "in-place update must not reallocate")
	assert.Equal(t, 5.0, live.Pos.X, "live reference sees the new data")
}

func TestCollectionRecreateInvalidatesHandles(t *testing.T) {
	c := NewCollection[*Point]("markers", nil)
	require.NoError(t, c.Update(OneFrame(points(1, 2, 3))))
	h := c.Handle(0)

	// Cardinality change is not an error, it is a recreation.
	require.NoError(t, c.Update(OneFrame(points(1, 2, 3, 4))))

	assert.Equal(t, 4, c.Len())
	assert.False(t, c.Valid(h))
	assert.True(t, c.Valid(c.Handle(0)))
}

func TestCollectionShapeChangeRecreates(t *testing.T) {
	c := NewCollection[*PolyLine]("muscles", nil)
	path := func(n int) []*PolyLine {
		return []*PolyLine{{Points: make([]r3.Vec, n)}}
	}
	require.NoError(t, c.Update(OneFrame(path(3))))
	gen := c.Generation()

	// Same item count, but a via-point appeared: the buffer must grow.
	require.NoError(t, c.Update(OneFrame(path(4))))

	assert.Equal(t, gen+1, c.Generation())
	assert.Len(t, c.At(0).Points, 4)
}

func TestCollectionVisibilityTombstones(t *testing.T) {
	c := NewCollection[*Point]("markers", nil)
	require.NoError(t, c.Update(OneFrame(points(1, 2, 3))))

	require.ErrorIs(t, c.SetVisibility([]bool{true}), ErrShapeMismatch)
	require.NoError(t, c.SetVisibility([]bool{false, true, false}))

	assert.False(t, c.Hidden(0))
	assert.True(t, c.Hidden(1))
	assert.True(t, math.IsNaN(c.At(1).Pos.X), "hidden primitive is a NaN tombstone")
	assert.Equal(t, 3, c.Len(), "hidden primitive keeps its slot")
	assert.Equal(t, 3.0, c.At(2).Pos.X)

	// Hidden slots stay tombstoned across in-place updates.
	require.NoError(t, c.Update(OneFrame(points(4, 5, 6))))
	assert.True(t, math.IsNaN(c.At(1).Pos.X))
	assert.Equal(t, 6.0, c.At(2).Pos.X)

	// Recreation resets visibility.
	require.NoError(t, c.Update(OneFrame(points(7, 8))))
	assert.False(t, c.Hidden(1))
	assert.Equal(t, 8.0, c.At(1).Pos.X)
}

func TestCollectionRequestsRedrawNeverDraws(t *testing.T) {
	redraw := &countingRedrawer{}
	c := NewCollection[*Point]("markers", redraw)

	require.NoError(t, c.Update(OneFrame(points(1))))
	require.NoError(t, c.Update(OneFrame(points(2))))
	require.NoError(t, c.SetVisibility([]bool{true}))

	assert.Equal(t, 3, redraw.requests)
}
