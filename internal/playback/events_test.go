package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAppendAndOverwrite(t *testing.T) {
	l := NewLedger()
	assert.Zero(t, l.Count())

	i, err := l.Set(12, "heel strike")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	i, err = l.Set(40, "toe off")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, 2, l.Count())

	require.NoError(t, l.SetAt(0, 14, "heel strike"))
	assert.Equal(t, 14, l.At(0).Frame)
	assert.Equal(t, 2, l.Count(), "overwriting does not grow the ledger")

	// One past the high-water mark is an append, further is a hole.
	require.NoError(t, l.SetAt(2, 55, "mid stance"))
	require.ErrorIs(t, l.SetAt(4, 60, "x"), ErrIndexOutOfRange)
	require.ErrorIs(t, l.SetAt(-1, 60, "x"), ErrIndexOutOfRange)
}

func TestLedgerCapacity(t *testing.T) {
	l := NewLedger()
	for i := 0; i < MaxEvents; i++ {
		_, err := l.Set(i, "e")
		require.NoError(t, err)
	}
	_, err := l.Set(999, "overflow")
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, MaxEvents, l.Count())
}

func TestLedgerSelectCyclesThroughNone(t *testing.T) {
	l := NewLedger()
	assert.Equal(t, -1, l.Select(1), "empty ledger never selects")

	l.Set(10, "a")
	l.Set(20, "b")
	l.Set(30, "c")

	assert.Equal(t, 0, l.Select(1))
	assert.Equal(t, 1, l.Select(1))
	assert.Equal(t, 2, l.Select(1))
	assert.Equal(t, -1, l.Select(1), "stepping past the end deselects")
	assert.Equal(t, 0, l.Select(1), "and the next step wraps to the start")

	assert.Equal(t, -1, l.Select(-1), "stepping back from the first deselects")
	assert.Equal(t, 2, l.Select(-1), "then wraps to the last")

	ev, ok := l.SelectedEvent()
	require.True(t, ok)
	assert.Equal(t, 30, ev.Frame)
}

func TestLedgerClear(t *testing.T) {
	l := NewLedger()
	l.Set(10, "a")
	l.Select(1)

	l.Clear()

	assert.Zero(t, l.Count())
	assert.Equal(t, -1, l.Selected())
	assert.Equal(t, -1, l.At(0).Frame)
}

func TestEventTimeMappingRoundTrips(t *testing.T) {
	// Movement trimmed to start at frame 10 of a capture whose own first
	// frame is 5, sampled at 100 Hz.
	tm := EventTime(12, 10, 5, 100)
	assert.InDelta(t, 0.07, tm, 1e-12)
	assert.Equal(t, 12, EventFrame(tm, 10, 5, 100))
}

func TestLedgerExport(t *testing.T) {
	l := NewLedger()
	l.Set(12, "heel strike")
	l.Set(40, "toe off")

	events := l.Export(10, 5, 100)

	require.Len(t, events, 2)
	assert.Equal(t, "General", events[0].Context)
	assert.Equal(t, "heel strike", events[0].Label)
	assert.InDelta(t, 0.07, events[0].Time, 1e-12)
	assert.InDelta(t, 0.35, events[1].Time, 1e-12)
}
