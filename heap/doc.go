// Package heap provides the object representation managed by the collector.
//
// # Objects
//
// Every heap object starts with a Header holding the intrusive heap-list link,
// a color and a storage Kind:
//
//	-3 array        growable sequence of values
//	-2 hash         unordered value -> value map
//	-1 ordered map  value -> value map ordered by key (B-tree)
//	 0 leaf         no children (string payloads)
//	 1..127         tuple of that arity
//
// Typed views (Tuple, Array, Hash, OrderedMap, String) project an Object by
// kind. Projecting through the wrong view panics.
//
// # Arena
//
// Objects live in an Arena of slots addressed by value.Ref handles. A handle
// carries the slot generation, so a handle to a freed slot does not resolve
// even after the slot is reused:
//
//	arena := heap.NewArena()
//	ref, obj := arena.Acquire()
//	obj.InitTuple(2, uint32(heap.SizeOfTuple(2)))
//
//	arena.Release(ref)
//	_, ok := arena.Get(ref) // false
//
// Release runs the payload destructor (arrays, hashes and ordered maps drop
// their containers) before the slot goes back on the free list.
package heap
