package scene

import (
	"errors"
	"fmt"
)

// Collection errors.
var (
	ErrInvalidFrameCount = errors.New("batch must hold exactly one time frame")
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrTopologyMismatch  = errors.New("geometry count differs from load-time topology")
)

// Redrawer is notified when CPU-side buffers change. Updates never draw;
// they only schedule. A nil Redrawer is allowed for headless use.
type Redrawer interface {
	RequestRedraw()
}

// Handle addresses one primitive in a collection. A recreation bumps the
// collection's generation, so handles taken before it stop resolving.
type Handle struct {
	Index      int
	Generation uint64
}

// Batch carries the per-frame geometry for one update. Frames counts the
// time frames the data spans; Update only accepts single-frame batches.
type Batch[P any] struct {
	Frames int
	Items  []P
}

// OneFrame wraps items as a single-frame batch.
func OneFrame[P any](items []P) Batch[P] {
	return Batch[P]{Frames: 1, Items: items}
}

// Collection is a named, indexable set of primitives of one kind. As long
// as the incoming batch matches the current shape, updates overwrite vertex
// data in place; a cardinality or shape change recreates every primitive
// and invalidates outstanding handles.
type Collection[P Primitive[P]] struct {
	name       string
	items      []P
	hidden     []bool
	generation uint64
	redraw     Redrawer
}

// NewCollection creates an empty collection. The first Update populates it
// through the recreate path.
func NewCollection[P Primitive[P]](name string, redraw Redrawer) *Collection[P] {
	return &Collection[P]{name: name, redraw: redraw}
}

func (c *Collection[P]) Name() string       { return c.name }
func (c *Collection[P]) Len() int           { return len(c.items) }
func (c *Collection[P]) Generation() uint64 { return c.generation }

// At returns the primitive at index i. The returned value is live: the next
// in-place update mutates it, and a recreation orphans it.
func (c *Collection[P]) At(i int) P { return c.items[i] }

// Items exposes the backing slice for rendering. Callers must not resize it.
func (c *Collection[P]) Items() []P { return c.items }

// Handle returns a handle for the primitive at index i, bound to the
// current generation.
func (c *Collection[P]) Handle(i int) Handle {
	return Handle{Index: i, Generation: c.generation}
}

// Valid reports whether h still resolves to a live primitive.
func (c *Collection[P]) Valid(h Handle) bool {
	return h.Generation == c.generation && h.Index >= 0 && h.Index < len(c.items)
}

// Hidden reports whether the primitive at index i is tombstoned.
func (c *Collection[P]) Hidden(i int) bool {
	return i >= 0 && i < len(c.hidden) && c.hidden[i]
}

// Update applies a single-frame batch. A batch whose item count and shapes
// match the current contents is written in place; anything else triggers a
// full recreation, which also resets per-primitive visibility.
func (c *Collection[P]) Update(b Batch[P]) error {
	if b.Frames != 1 {
		return fmt.Errorf("%w: collection %s got %d frames", ErrInvalidFrameCount, c.name, b.Frames)
	}

	if c.sameShape(b.Items) {
		for i, item := range b.Items {
			c.items[i].Set(item)
		}
	} else {
		c.items = make([]P, len(b.Items))
		for i, item := range b.Items {
			c.items[i] = item.Clone()
		}
		c.hidden = make([]bool, len(b.Items))
		c.generation++
	}

	for i, h := range c.hidden {
		if h {
			c.items[i].Tombstone()
		}
	}
	c.requestRedraw()
	return nil
}

// SetVisibility hides or shows primitives by index. Hidden primitives keep
// their slot and are tombstoned immediately; they reappear on the next
// update that writes them.
func (c *Collection[P]) SetVisibility(flags []bool) error {
	if len(flags) != len(c.items) {
		return fmt.Errorf("%w: collection %s holds %d primitives, got %d flags",
			ErrShapeMismatch, c.name, len(c.items), len(flags))
	}
	copy(c.hidden, flags)
	for i, h := range c.hidden {
		if h {
			c.items[i].Tombstone()
		}
	}
	c.requestRedraw()
	return nil
}

func (c *Collection[P]) sameShape(items []P) bool {
	if c.generation == 0 || len(items) != len(c.items) {
		return false
	}
	for i, item := range items {
		if !c.items[i].SameShape(item) {
			return false
		}
	}
	return true
}

func (c *Collection[P]) requestRedraw() {
	if c.redraw != nil {
		c.redraw.RequestRedraw()
	}
}
