package heap

import (
	"github.com/google/btree"

	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/value"
)

// Views are typed projections over an Object. They do not run the write
// barrier: after storing a reference through a view the host must call the
// collector's Mark on it.

func (o *Object) mismatch(ref value.Ref, want string) *errors.Error {
	return errors.KindMismatch(ref, o.Kind(), want)
}

// Tuple is a fixed-arity sequence of slots.
type Tuple struct{ obj *Object }

// AsTuple projects o as a tuple; ref only labels the panic.
func (o *Object) AsTuple(ref value.Ref) Tuple {
	if !o.Kind().IsTuple() {
		panic(o.mismatch(ref, "tuple"))
	}
	return Tuple{obj: o}
}

// Size returns the arity.
func (t Tuple) Size() int { return int(t.obj.Kind()) }

func (t Tuple) Get(i int) value.Value {
	t.check(i)
	return t.obj.slots[i]
}

func (t Tuple) Set(i int, v value.Value) {
	t.check(i)
	t.obj.slots[i] = v
}

// Slots returns the backing slots. Writes through it bypass bounds checks
// but not the barrier requirement.
func (t Tuple) Slots() []value.Value { return t.obj.slots }

func (t Tuple) check(i int) {
	if i < 0 || i >= len(t.obj.slots) {
		panic(errors.OutOfBounds(errors.PhaseAccess, i, len(t.obj.slots)))
	}
}

// Array is a growable ordered sequence.
type Array struct{ obj *Object }

func (o *Object) AsArray(ref value.Ref) Array {
	if o.Kind() != KindArray {
		panic(o.mismatch(ref, "array"))
	}
	return Array{obj: o}
}

func (a Array) Len() int { return len(a.obj.array) }

func (a Array) Get(i int) value.Value {
	a.check(i)
	return a.obj.array[i]
}

func (a Array) Set(i int, v value.Value) {
	a.check(i)
	a.obj.array[i] = v
}

func (a Array) Push(v value.Value) {
	a.obj.array = append(a.obj.array, v)
}

// Pop removes and returns the last element.
func (a Array) Pop() (value.Value, bool) {
	n := len(a.obj.array)
	if n == 0 {
		return value.Nil, false
	}
	v := a.obj.array[n-1]
	a.obj.array[n-1] = value.Nil
	a.obj.array = a.obj.array[:n-1]
	return v, true
}

// Truncate shortens the array to n elements.
func (a Array) Truncate(n int) {
	if n < 0 || n > len(a.obj.array) {
		panic(errors.OutOfBounds(errors.PhaseAccess, n, len(a.obj.array)))
	}
	clear(a.obj.array[n:])
	a.obj.array = a.obj.array[:n]
}

func (a Array) Values() []value.Value { return a.obj.array }

func (a Array) check(i int) {
	if i < 0 || i >= len(a.obj.array) {
		panic(errors.OutOfBounds(errors.PhaseAccess, i, len(a.obj.array)))
	}
}

// Hash is an unordered mapping.
type Hash struct{ obj *Object }

func (o *Object) AsHash(ref value.Ref) Hash {
	if o.Kind() != KindHash {
		panic(o.mismatch(ref, "hash"))
	}
	return Hash{obj: o}
}

func (h Hash) Len() int { return len(h.obj.hash) }

func (h Hash) Get(k value.Value) (value.Value, bool) {
	v, ok := h.obj.hash[k]
	return v, ok
}

func (h Hash) Put(k, v value.Value) {
	h.obj.hash[k] = v
}

// Delete removes k and reports whether it was present.
func (h Hash) Delete(k value.Value) bool {
	if _, ok := h.obj.hash[k]; !ok {
		return false
	}
	delete(h.obj.hash, k)
	return true
}

// Range calls fn for each entry in unspecified order until fn returns false.
func (h Hash) Range(fn func(k, v value.Value) bool) {
	for k, v := range h.obj.hash {
		if !fn(k, v) {
			return
		}
	}
}

// OrderedMap is a mapping ordered by value.Compare on keys.
type OrderedMap struct{ tree *btree.BTreeG[Entry] }

func (o *Object) AsOrderedMap(ref value.Ref) OrderedMap {
	if o.Kind() != KindOrderedMap {
		panic(o.mismatch(ref, "ordered map"))
	}
	return OrderedMap{tree: o.tree}
}

func (m OrderedMap) Len() int { return m.tree.Len() }

func (m OrderedMap) Get(k value.Value) (value.Value, bool) {
	e, ok := m.tree.Get(Entry{Key: k})
	return e.Val, ok
}

// Put inserts or replaces the entry for k.
func (m OrderedMap) Put(k, v value.Value) {
	m.tree.ReplaceOrInsert(Entry{Key: k, Val: v})
}

func (m OrderedMap) Delete(k value.Value) bool {
	_, ok := m.tree.Delete(Entry{Key: k})
	return ok
}

// Ascend calls fn for each entry in key order until fn returns false.
func (m OrderedMap) Ascend(fn func(k, v value.Value) bool) {
	m.tree.Ascend(func(e Entry) bool {
		return fn(e.Key, e.Val)
	})
}

func (m OrderedMap) Min() (Entry, bool) { return m.tree.Min() }

func (m OrderedMap) Max() (Entry, bool) { return m.tree.Max() }

// String is a leaf carrying raw bytes.
type String struct{ obj *Object }

func (o *Object) AsString(ref value.Ref) String {
	if o.Kind() != KindLeaf {
		panic(o.mismatch(ref, "string"))
	}
	return String{obj: o}
}

func (s String) Len() int { return len(s.obj.bytes) }

// Bytes returns the payload. It is writable and never holds references.
func (s String) Bytes() []byte { return s.obj.bytes }
