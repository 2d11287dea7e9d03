package playback

import (
	"errors"
	"fmt"
	"math"

	"github.com/openkin/skelviz/pkg/formats"
)

// MaxEvents is the fixed capacity of the ledger.
const MaxEvents = 100

// ErrIndexOutOfRange is returned for an event index beyond the ledger's
// high-water mark or capacity.
var ErrIndexOutOfRange = errors.New("event index out of range")

// Event is one ledger slot. Frame is -1 while the slot is unused.
type Event struct {
	Frame   int
	Label   string
	Context string
	Color   [3]float64
}

// Ledger is a fixed array of 100 event slots with a high-water mark and a
// cycling selection.
type Ledger struct {
	events    [MaxEvents]Event
	lastIndex int
	selected  int
}

// NewLedger returns an empty ledger: every frame -1, nothing selected.
func NewLedger() *Ledger {
	l := &Ledger{lastIndex: -1, selected: -1}
	for i := range l.events {
		l.events[i].Frame = -1
	}
	return l
}

// Count returns the number of used slots.
func (l *Ledger) Count() int { return l.lastIndex + 1 }

// At returns the event at index i.
func (l *Ledger) At(i int) Event { return l.events[i] }

// Set appends an event in the next free slot and returns its index.
func (l *Ledger) Set(frame int, label string) (int, error) {
	index := l.lastIndex + 1
	if err := l.SetAt(index, frame, label); err != nil {
		return -1, err
	}
	return index, nil
}

// SetAt overwrites the event at index, or appends when index is the first
// free slot. Anything past that is rejected: the ledger has no holes.
func (l *Ledger) SetAt(index, frame int, label string) error {
	if index < 0 || index >= MaxEvents {
		return fmt.Errorf("%w: %d of %d slots", ErrIndexOutOfRange, index, MaxEvents)
	}
	if index > l.lastIndex+1 {
		return fmt.Errorf("%w: %d is past the last used slot %d", ErrIndexOutOfRange, index, l.lastIndex)
	}
	l.events[index].Frame = frame
	l.events[index].Label = label
	if index > l.lastIndex {
		l.lastIndex = index
	}
	return nil
}

// Selected returns the selected index, -1 when none.
func (l *Ledger) Selected() int { return l.selected }

// SelectedEvent returns the selected event and whether one is selected.
func (l *Ledger) SelectedEvent() (Event, bool) {
	if l.selected < 0 {
		return Event{}, false
	}
	return l.events[l.selected], true
}

// Select moves the selection by step, cycling through the used slots with a
// "none selected" position between the last and the first.
func (l *Ledger) Select(step int) int {
	n := l.Count()
	if n == 0 {
		l.selected = -1
		return -1
	}
	pos := l.selected
	if pos < 0 {
		pos = n
	}
	pos = ((pos+step)%(n+1) + (n + 1)) % (n + 1)
	if pos == n {
		l.selected = -1
	} else {
		l.selected = pos
	}
	return l.selected
}

// Clear resets every slot to unused and drops the selection.
func (l *Ledger) Clear() {
	for i := range l.events {
		l.events[i] = Event{Frame: -1}
	}
	l.lastIndex = -1
	l.selected = -1
}

// EventTime maps a ledger frame to the absolute capture timestamp it will
// carry in an exported file: the trim offset places the frame back in the
// untrimmed movement, the container's own first frame shifts it into
// capture numbering, and the point rate converts to seconds.
func EventTime(frame, trimFirst, containerFirst int, pointRate float64) float64 {
	return float64(frame-trimFirst+containerFirst) / pointRate
}

// EventFrame is the inverse of EventTime.
func EventFrame(time float64, trimFirst, containerFirst int, pointRate float64) int {
	return int(math.Round(time*pointRate)) - containerFirst + trimFirst
}

// Export converts the used slots into capture events for a C3D file.
func (l *Ledger) Export(trimFirst, containerFirst int, pointRate float64) []formats.C3DEvent {
	out := make([]formats.C3DEvent, 0, l.Count())
	for i := 0; i <= l.lastIndex; i++ {
		ev := l.events[i]
		context := ev.Context
		if context == "" {
			context = "General"
		}
		out = append(out, formats.C3DEvent{
			Context: context,
			Label:   ev.Label,
			Time:    EventTime(ev.Frame, trimFirst, containerFirst, pointRate),
		})
	}
	return out
}
