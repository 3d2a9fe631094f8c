package value

import (
	"cmp"
	"fmt"
)

// Ref is an opaque handle to a heap object: slot index in the low 32 bits,
// slot generation in the high 32 bits. Ref 0 is reserved and always invalid.
type Ref uint64

// MakeRef packs a slot index and generation.
func MakeRef(index, gen uint32) Ref {
	return Ref(uint64(gen)<<32 | uint64(index))
}

// Index returns the arena slot index.
func (r Ref) Index() uint32 { return uint32(r) }

// Gen returns the slot generation the handle was issued for.
func (r Ref) Gen() uint32 { return uint32(r >> 32) }

// IsNil reports whether r is the null handle.
func (r Ref) IsNil() bool { return r == 0 }

// Value wraps r as a pointer reference.
func (r Ref) Value() Value { return Of(r) }

func (r Ref) String() string {
	if r == 0 {
		return "nil"
	}
	return fmt.Sprintf("#%d.%d", r.Index(), r.Gen())
}

// Tag discriminates the word held by a Value.
type Tag uint8

const (
	TagNil Tag = iota
	TagImmediate
	TagRef
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagImmediate:
		return "imm"
	case TagRef:
		return "ref"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Value is a slot content: nil, an immediate scalar, or a heap reference.
// The zero Value is Nil. Values are comparable and usable as map keys.
type Value struct {
	word uint64
	tag  Tag
}

// Nil is the empty value.
var Nil Value

// Immediate wraps a scalar the collector never interprets.
func Immediate(word uint64) Value {
	return Value{word: word, tag: TagImmediate}
}

// Int wraps a signed scalar as an immediate.
func Int(i int64) Value {
	return Immediate(uint64(i))
}

// Of wraps a heap reference. The null handle becomes Nil.
func Of(r Ref) Value {
	if r == 0 {
		return Nil
	}
	return Value{word: uint64(r), tag: TagRef}
}

// FromWire rebuilds a value from its tag and word, as carried across the
// WASM boundary. Unknown tags are rejected.
func FromWire(tag uint32, word uint64) (Value, bool) {
	switch Tag(tag) {
	case TagNil:
		return Nil, true
	case TagImmediate:
		return Immediate(word), true
	case TagRef:
		return Of(Ref(word)), true
	default:
		return Nil, false
	}
}

// Tag returns the discriminant.
func (v Value) Tag() Tag { return v.tag }

// Word returns the raw word.
func (v Value) Word() uint64 { return v.word }

// IsNil reports whether v holds nothing.
func (v Value) IsNil() bool { return v.tag == TagNil }

// IsRef reports whether v is a pointer reference.
func (v Value) IsRef() bool { return v.tag == TagRef }

// Ref returns the referenced handle, or 0 when v is not a reference.
func (v Value) Ref() Ref {
	if v.tag != TagRef {
		return 0
	}
	return Ref(v.word)
}

func (v Value) String() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagImmediate:
		return fmt.Sprintf("%d", int64(v.word))
	case TagRef:
		return Ref(v.word).String()
	default:
		return fmt.Sprintf("<%s:%#x>", v.tag, v.word)
	}
}

// Compare orders values by tag, then by word.
func Compare(a, b Value) int {
	if c := cmp.Compare(a.tag, b.tag); c != 0 {
		return c
	}
	return cmp.Compare(a.word, b.word)
}

// Less reports whether a orders before b.
func Less(a, b Value) bool {
	return Compare(a, b) < 0
}
