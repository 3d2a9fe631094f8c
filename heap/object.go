package heap

import (
	"maps"
	"math"
	"slices"

	"github.com/google/btree"

	"github.com/wippyai/gc-runtime/value"
)

// Size estimates, in bytes, charged against the raw memory allocator.
const (
	HeaderSize     = 16
	SlotSize       = 16
	arrayBaseSize  = HeaderSize + 24
	hashBaseSize   = HeaderSize + 48
	hashEntrySize  = 2 * SlotSize
	orderedMapSize = HeaderSize + 64
)

// SizeOfString returns the charge for a leaf with n payload bytes. Sizes
// are computed in 64 bits; callers reject anything above math.MaxUint32.
func SizeOfString(n int) uint64 { return sizeOf(HeaderSize, n, 1) }

// SizeOfTuple returns the charge for a tuple of the given arity.
func SizeOfTuple(arity int) uint64 { return sizeOf(HeaderSize, arity, SlotSize) }

// SizeOfArray returns the charge for an array with the given initial capacity.
func SizeOfArray(capacity int) uint64 { return sizeOf(arrayBaseSize, capacity, SlotSize) }

// SizeOfHash returns the charge for a hash with the given initial capacity.
func SizeOfHash(capacity int) uint64 { return sizeOf(hashBaseSize, capacity, hashEntrySize) }

// SizeOfOrderedMap returns the charge for an empty ordered map.
func SizeOfOrderedMap() uint64 { return orderedMapSize }

// sizeOf saturates at math.MaxUint64 for counts that cannot be charged.
func sizeOf(base uint64, n int, per uint64) uint64 {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return math.MaxUint64
	}
	return base + uint64(n)*per
}

// btreeDegree is the branching factor of ordered map payloads.
const btreeDegree = 8

// Entry is one key/value pair of an ordered map.
type Entry struct {
	Key value.Value
	Val value.Value
}

func entryLess(a, b Entry) bool {
	return value.Less(a.Key, b.Key)
}

// Object is a heap slot: a Header followed by the payload for its kind.
// Only the field matching the kind is populated.
type Object struct {
	Header

	gen   uint32
	size  uint32
	live  bool
	bytes []byte
	slots []value.Value
	array []value.Value
	hash  map[value.Value]value.Value
	tree  *btree.BTreeG[Entry]
}

// Size returns the bytes charged for this object.
func (o *Object) Size() uint32 { return o.size }

// InitString shapes o as a leaf carrying n zero bytes.
func (o *Object) InitString(n int, size uint32) {
	o.bytes = make([]byte, n)
	o.size = size
	o.SetKind(KindLeaf)
}

// InitTuple shapes o as a tuple of nil slots.
func (o *Object) InitTuple(arity int, size uint32) {
	kind := TupleKind(arity)
	o.slots = make([]value.Value, arity)
	o.size = size
	o.SetKind(kind)
}

// InitArray shapes o as an empty array with the given capacity.
func (o *Object) InitArray(capacity int, size uint32) {
	o.array = make([]value.Value, 0, capacity)
	o.size = size
	o.SetKind(KindArray)
}

// InitHash shapes o as an empty hash with the given capacity hint.
func (o *Object) InitHash(capacity int, size uint32) {
	o.hash = make(map[value.Value]value.Value, capacity)
	o.size = size
	o.SetKind(KindHash)
}

// InitOrderedMap shapes o as an empty ordered map.
func (o *Object) InitOrderedMap(size uint32) {
	o.tree = btree.NewG(btreeDegree, entryLess)
	o.size = size
	o.SetKind(KindOrderedMap)
}

// Children calls fn for every slot value of o. Leaf objects have none.
// Keys are visited before their values.
func (o *Object) Children(fn func(value.Value)) {
	switch k := o.Kind(); {
	case k == KindLeaf:
	case k > 0:
		for _, v := range o.slots {
			fn(v)
		}
	case k == KindArray:
		for _, v := range o.array {
			fn(v)
		}
	case k == KindHash:
		for _, key := range slices.SortedFunc(maps.Keys(o.hash), value.Compare) {
			fn(key)
			fn(o.hash[key])
		}
	case k == KindOrderedMap:
		o.tree.Ascend(func(e Entry) bool {
			fn(e.Key)
			fn(e.Val)
			return true
		})
	}
}

// release drops the payload containers. It is the destructor run before the
// slot goes back on the free list.
func (o *Object) release() {
	switch o.Kind() {
	case KindArray:
		clear(o.array)
		o.array = nil
	case KindHash:
		clear(o.hash)
		o.hash = nil
	case KindOrderedMap:
		o.tree.Clear(false)
		o.tree = nil
	}
	o.bytes = nil
	o.slots = nil
}

// reset zeroes o while keeping its generation.
func (o *Object) reset() {
	gen := o.gen
	*o = Object{gen: gen}
}
