package heap

import (
	"fmt"

	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/value"
)

// Color is the stored tri-color state. Gray is not stored: an object is gray
// exactly while it sits on a collector's worklist.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return fmt.Sprintf("color(%d)", uint8(c))
	}
}

// Kind is the storage tag: a payload shape or a tuple arity.
//
//	-3 array, -2 hash, -1 ordered map, 0 leaf (no children), 1..127 tuple
type Kind int8

const (
	KindArray      Kind = -3
	KindHash       Kind = -2
	KindOrderedMap Kind = -1
	KindLeaf       Kind = 0

	// MaxArity is the largest tuple arity a Kind can carry.
	MaxArity = 127
)

// TupleKind returns the kind of a tuple with the given arity.
func TupleKind(arity int) Kind {
	if arity < 1 || arity > MaxArity {
		panic(errors.InvalidKind(arity))
	}
	return Kind(arity)
}

// Valid reports whether k is a known tag.
func (k Kind) Valid() bool {
	return k >= 0 || k == KindArray || k == KindHash || k == KindOrderedMap
}

// IsTuple reports whether k is a tuple arity.
func (k Kind) IsTuple() bool { return k > 0 }

// OwnsState reports whether objects of this kind carry a container that must
// be released before the slot is reused.
func (k Kind) OwnsState() bool { return k < 0 }

func (k Kind) String() string {
	switch {
	case k == KindArray:
		return "array"
	case k == KindHash:
		return "hash"
	case k == KindOrderedMap:
		return "ordered_map"
	case k == KindLeaf:
		return "leaf"
	case k > 0:
		return fmt.Sprintf("tuple(%d)", int(k))
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Header is the prefix shared by every heap object: the intrusive heap-list
// link, the color and the storage kind.
type Header struct {
	next  value.Ref
	color Color
	kind  Kind
}

func (h *Header) Color() Color { return h.color }

func (h *Header) SetColor(c Color) { h.color = c }

func (h *Header) Kind() Kind { return h.kind }

// SetKind panics unless k is a valid tag.
func (h *Header) SetKind(k Kind) {
	if !k.Valid() {
		panic(errors.InvalidKind(int(k)))
	}
	h.kind = k
}

// Next returns the following object in the heap list, or 0.
func (h *Header) Next() value.Ref { return h.next }

func (h *Header) SetNext(r value.Ref) { h.next = r }
