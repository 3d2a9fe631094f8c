package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"testing"

	"github.com/tetratelabs/wazero"

	gcruntime "github.com/wippyai/gc-runtime"
	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/gc"
	"github.com/wippyai/gc-runtime/heap"
	"github.com/wippyai/gc-runtime/value"
)

const (
	tagNil = uint64(value.TagNil)
	tagImm = uint64(value.TagImmediate)
	tagRef = uint64(value.TagRef)
)

func setup(t *testing.T, opts gc.Options) *gc.Collector {
	t.Helper()
	c := gc.New(opts)
	t.Cleanup(c.Close)
	return c
}

// invoke runs a host function the way the runtime does, on a value stack
// sized for its signature. A trap comes back as the panicked error.
func invoke(c *gc.Collector, name string, params ...uint64) (res []uint64, err error) {
	i := slices.IndexFunc(functions, func(f function) bool { return f.name == name })
	if i < 0 {
		return nil, fmt.Errorf("function %s not exported", name)
	}
	f := functions[i]
	if len(params) != len(f.params) {
		return nil, fmt.Errorf("%s takes %d params, got %d", name, len(f.params), len(params))
	}

	stack := make([]uint64, max(len(f.params), len(f.results)))
	copy(stack, params)
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = e
		}
	}()
	bind(c, f)(context.Background(), nil, stack)
	return stack[:len(f.results)], nil
}

func call(t *testing.T, c *gc.Collector, name string, params ...uint64) []uint64 {
	t.Helper()
	res, err := invoke(c, name, params...)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return res
}

func TestInstantiate_Exports(t *testing.T) {
	want := []string{
		"alloc_string", "alloc_tuple", "alloc_array", "alloc_hash", "alloc_tree_map",
		"tuple_set", "tuple_get", "array_push", "array_get", "array_len",
		"hash_put", "hash_get", "tree_map_put", "tree_map_get",
		"add_to_root", "remove_from_root", "mark",
		"step", "finish_gc", "full_gc", "objects", "phase",
	}
	if got := Exports(); !slices.Equal(got, want) {
		t.Fatalf("Exports() = %v, want %v", got, want)
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })
	if _, err := Instantiate(ctx, rt, gc.NewWithDefaults()); err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}

	// Instantiation checks every import against the export's signature.
	guest, err := rt.Instantiate(ctx, importAllModule())
	if err != nil {
		t.Fatalf("linking every export failed: %v", err)
	}
	guest.Close(ctx)
}

func TestHostModule_Scenario(t *testing.T) {
	c := setup(t, gc.DefaultOptions())

	tup := call(t, c, "alloc_tuple", 1)[0]
	arr := call(t, c, "alloc_array", 0)[0]
	call(t, c, "array_push", arr, tagRef, tup)
	call(t, c, "add_to_root", tagRef, arr)
	call(t, c, "full_gc")
	if got := call(t, c, "objects")[0]; got != 2 {
		t.Fatalf("objects = %d, want 2", got)
	}

	h := call(t, c, "alloc_hash", 0)[0]
	call(t, c, "alloc_tree_map")
	call(t, c, "tuple_set", tup, 0, tagRef, h)
	if got := call(t, c, "objects")[0]; got != 4 {
		t.Fatalf("objects = %d, want 4", got)
	}
	call(t, c, "full_gc")
	call(t, c, "full_gc")
	if got := call(t, c, "objects")[0]; got != 3 {
		t.Fatalf("objects = %d, want 3", got)
	}

	res := call(t, c, "tuple_get", tup, 0)
	if res[0] != tagRef || res[1] != h {
		t.Fatalf("tuple_get = %v, want ref %d", res, h)
	}
	res = call(t, c, "array_get", arr, 0)
	if res[0] != tagRef || res[1] != tup {
		t.Fatalf("array_get = %v, want ref %d", res, tup)
	}
	if got := call(t, c, "array_len", arr)[0]; got != 1 {
		t.Fatalf("array_len = %d, want 1", got)
	}

	call(t, c, "remove_from_root", tagRef, arr)
	call(t, c, "full_gc")
	if c.Objects() != 0 {
		t.Fatalf("objects = %d, want 0", c.Objects())
	}
}

func TestHostModule_Maps(t *testing.T) {
	c := setup(t, gc.DefaultOptions())

	h := call(t, c, "alloc_hash", 2)[0]
	m := call(t, c, "alloc_tree_map")[0]
	leaf := call(t, c, "alloc_string", 4)[0]
	call(t, c, "add_to_root", tagRef, h)
	call(t, c, "hash_put", h, tagImm, 1, tagRef, m)
	call(t, c, "tree_map_put", m, tagRef, leaf, tagImm, 42)

	res := call(t, c, "hash_get", h, tagImm, 1)
	if res[0] != 1 || res[1] != tagRef || res[2] != m {
		t.Fatalf("hash_get = %v", res)
	}
	res = call(t, c, "hash_get", h, tagImm, 2)
	if res[0] != 0 || res[1] != tagNil {
		t.Fatalf("missing key: hash_get = %v", res)
	}
	res = call(t, c, "tree_map_get", m, tagRef, leaf)
	if res[0] != 1 || res[1] != tagImm || res[2] != 42 {
		t.Fatalf("tree_map_get = %v", res)
	}

	call(t, c, "full_gc")
	if got := c.Objects(); got != 3 {
		t.Fatalf("objects = %d, want 3", got)
	}
	if c.Kind(value.Ref(m)) != heap.KindOrderedMap {
		t.Fatalf("kind = %s", c.Kind(value.Ref(m)))
	}
}

func TestHostModule_StoresRunBarrier(t *testing.T) {
	c := setup(t, gc.Options{MarkMax: 100, SweepMax: 1})

	z := call(t, c, "alloc_tuple", 1)[0]
	y := call(t, c, "alloc_tuple", 1)[0]
	r := call(t, c, "alloc_tuple", 1)[0]
	call(t, c, "tuple_set", y, 0, tagRef, z)
	call(t, c, "add_to_root", tagRef, r)

	for call(t, c, "phase")[0] != uint64(gc.PhaseSweep) {
		call(t, c, "step")
	}
	call(t, c, "step")

	// No explicit mark: tuple_set applies the barrier.
	call(t, c, "tuple_set", r, 0, tagRef, y)
	call(t, c, "finish_gc")

	if !c.Valid(value.Ref(y)) || !c.Valid(value.Ref(z)) {
		t.Fatal("objects stored during sweep were freed")
	}
}

func TestHostModule_StaleStoreLeavesHeapIntact(t *testing.T) {
	c := setup(t, gc.Options{MarkMax: 2, SweepMax: 2})

	tup := call(t, c, "alloc_tuple", 1)[0]
	arr := call(t, c, "alloc_array", 0)[0]
	h := call(t, c, "alloc_hash", 0)[0]
	m := call(t, c, "alloc_tree_map")[0]
	for _, r := range []uint64{tup, arr, h, m} {
		call(t, c, "add_to_root", tagRef, r)
	}
	freed := call(t, c, "alloc_tuple", 1)[0]
	call(t, c, "full_gc")
	if c.Valid(value.Ref(freed)) {
		t.Fatal("unrooted tuple survived full_gc")
	}

	tests := []struct {
		name   string
		fn     string
		params []uint64
	}{
		{"tuple slot", "tuple_set", []uint64{tup, 0, tagRef, freed}},
		{"array element", "array_push", []uint64{arr, tagRef, freed}},
		{"hash key", "hash_put", []uint64{h, tagRef, freed, tagImm, 1}},
		{"hash value", "hash_put", []uint64{h, tagImm, 1, tagRef, freed}},
		{"ordered map key", "tree_map_put", []uint64{m, tagRef, freed, tagImm, 1}},
		{"ordered map value", "tree_map_put", []uint64{m, tagImm, 1, tagRef, freed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(c, tt.fn, tt.params...)
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Kind != errors.KindStaleRef {
				t.Fatalf("err = %v, want kind %s", err, errors.KindStaleRef)
			}
			if e.Phase != errors.PhaseHost {
				t.Fatalf("phase = %s, want %s", e.Phase, errors.PhaseHost)
			}
		})
	}

	if res := call(t, c, "tuple_get", tup, 0); res[0] != tagNil {
		t.Fatalf("tuple slot = %v after rejected store, want nil", res)
	}
	if got := call(t, c, "array_len", arr)[0]; got != 0 {
		t.Fatalf("array_len = %d after rejected push, want 0", got)
	}
	if n := c.Hash(value.Ref(h)).Len(); n != 0 {
		t.Fatalf("hash len = %d after rejected puts, want 0", n)
	}
	if n := c.OrderedMap(value.Ref(m)).Len(); n != 0 {
		t.Fatalf("ordered map len = %d after rejected puts, want 0", n)
	}

	call(t, c, "full_gc")
	call(t, c, "full_gc")
	if got := c.Objects(); got != 4 {
		t.Fatalf("objects = %d, want the 4 roots", got)
	}
}

func TestHostModule_Traps(t *testing.T) {
	mem := gcruntime.NewBudget(heap.SizeOfTuple(1))
	c := setup(t, gc.Options{Allocator: mem, MarkMax: 1, SweepMax: 1})

	tup := call(t, c, "alloc_tuple", 1)[0]

	tests := []struct {
		name   string
		fn     string
		params []uint64
		kind   errors.Kind
	}{
		{"out of memory", "alloc_tuple", []uint64{1}, errors.KindOutOfMemory},
		{"oversized array", "alloc_array", []uint64{0x7FFFFFFF}, errors.KindOutOfMemory},
		{"oversized hash", "alloc_hash", []uint64{0x7FFFFFFF}, errors.KindOutOfMemory},
		{"zero arity", "alloc_tuple", []uint64{0}, errors.KindContract},
		{"bad tag", "mark", []uint64{9, 0}, errors.KindInvalidInput},
		{"bad stored tag", "tuple_set", []uint64{tup, 0, 9, 0}, errors.KindInvalidInput},
		{"stale handle", "mark", []uint64{tagRef, uint64(value.MakeRef(50, 3))}, errors.KindStaleRef},
		{"stale store", "tuple_set", []uint64{tup, 0, tagRef, uint64(value.MakeRef(50, 3))}, errors.KindStaleRef},
		{"slot out of range", "tuple_get", []uint64{tup, 3}, errors.KindOutOfBounds},
		{"negative index", "tuple_get", []uint64{tup, uint64(0xFFFFFFFF)}, errors.KindInvalidInput},
		{"wrong view", "array_len", []uint64{tup}, errors.KindKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(c, tt.fn, tt.params...)
			if err == nil {
				t.Fatal("expected trap")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Kind != tt.kind {
				t.Fatalf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}

	_, err := invoke(c, "alloc_string", 8)
	if !stderrors.Is(err, errors.ErrOutOfMemory) {
		t.Fatalf("err = %v, want ErrOutOfMemory", err)
	}

	call(t, c, "add_to_root", tagRef, tup)
	call(t, c, "full_gc")
	if got := call(t, c, "objects")[0]; got != 1 {
		t.Fatalf("objects = %d after traps, want 1", got)
	}
}

// Wasm binary encoding helpers.

func uleb(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmName(s string) []byte { return append(uleb(len(s)), s...) }

func wasmSection(id byte, count int, items ...[]byte) []byte {
	body := slices.Concat(append([][]byte{uleb(count)}, items...)...)
	return slices.Concat([]byte{id}, uleb(len(body)), body)
}

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func funcType(f function) []byte {
	out := append([]byte{0x60}, uleb(len(f.params))...)
	for _, p := range f.params {
		out = append(out, byte(p))
	}
	out = append(out, uleb(len(f.results))...)
	for _, r := range f.results {
		out = append(out, byte(r))
	}
	return out
}

// importAllModule imports every host function with its declared signature.
func importAllModule() []byte {
	types := make([][]byte, len(functions))
	imports := make([][]byte, len(functions))
	for i, f := range functions {
		types[i] = funcType(f)
		imports[i] = slices.Concat(wasmName(ModuleName), wasmName(f.name), []byte{0x00}, uleb(i))
	}
	return slices.Concat(
		wasmHeader,
		wasmSection(0x01, len(types), types...),
		wasmSection(0x02, len(imports), imports...),
	)
}

// trapModule exports "run", which calls alloc_tuple with arity 0.
func trapModule() []byte {
	code := []byte{
		0x00,       // no locals
		0x41, 0x00, // i32.const 0
		0x10, 0x00, // call alloc_tuple
		0x1a, // drop
		0x0b,
	}
	return slices.Concat(
		wasmHeader,
		wasmSection(0x01, 2,
			[]byte{0x60, 0x01, 0x7f, 0x01, 0x7e}, // (i32) -> i64
			[]byte{0x60, 0x00, 0x00},             // () -> ()
		),
		wasmSection(0x02, 1, slices.Concat(wasmName(ModuleName), wasmName("alloc_tuple"), []byte{0x00, 0x00})),
		wasmSection(0x03, 1, []byte{0x01}),
		wasmSection(0x07, 1, wasmName("run"), []byte{0x00, 0x01}),
		wasmSection(0x0a, 1, uleb(len(code)), code),
	)
}

// guestModule is a hand-assembled module equivalent to:
//
//	(module
//	  (import "gc" "alloc_tuple" (func (param i32) (result i64)))
//	  (import "gc" "add_to_root" (func (param i32 i64)))
//	  (import "gc" "full_gc" (func))
//	  (import "gc" "objects" (func (result i32)))
//	  (func (export "run") (result i32) (local i64)
//	    (local.set 0 (call 0 (i32.const 1)))
//	    (call 1 (i32.const 2) (local.get 0))
//	    (drop (call 0 (i32.const 1)))
//	    (call 2)
//	    (call 3)))
func guestModule() []byte {
	imp := func(field string, typeIdx byte) []byte {
		return slices.Concat(wasmName(ModuleName), wasmName(field), []byte{0x00, typeIdx})
	}

	code := []byte{
		0x01, 0x01, 0x7e, // one i64 local
		0x41, 0x01, 0x10, 0x00, 0x21, 0x00,
		0x41, 0x02, 0x20, 0x00, 0x10, 0x01,
		0x41, 0x01, 0x10, 0x00, 0x1a,
		0x10, 0x02,
		0x10, 0x03,
		0x0b,
	}

	return slices.Concat(
		wasmHeader,
		wasmSection(0x01, 4,
			[]byte{0x60, 0x01, 0x7f, 0x01, 0x7e}, // (i32) -> i64
			[]byte{0x60, 0x02, 0x7f, 0x7e, 0x00}, // (i32, i64) -> ()
			[]byte{0x60, 0x00, 0x00},             // () -> ()
			[]byte{0x60, 0x00, 0x01, 0x7f},       // () -> i32
		),
		wasmSection(0x02, 4,
			imp("alloc_tuple", 0),
			imp("add_to_root", 1),
			imp("full_gc", 2),
			imp("objects", 3),
		),
		wasmSection(0x03, 1, []byte{0x03}),
		wasmSection(0x07, 1, wasmName("run"), []byte{0x00, 0x04}),
		wasmSection(0x0a, 1, uleb(len(code)), code),
	)
}

func TestGuest_Run(t *testing.T) {
	ctx := context.Background()
	c := gc.NewWithDefaults()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	if _, err := Instantiate(ctx, rt, c); err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	guest, err := rt.Instantiate(ctx, guestModule())
	if err != nil {
		t.Fatalf("guest instantiation failed: %v", err)
	}
	defer guest.Close(ctx)

	res, err := guest.ExportedFunction("run").Call(ctx)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res[0] != 1 {
		t.Fatalf("objects after guest full_gc = %d, want 1", res[0])
	}
	if roots := c.Roots(); len(roots) != 1 || c.Kind(roots[0]) != heap.TupleKind(1) {
		t.Fatalf("roots = %v", roots)
	}
}

func TestGuest_TrapWrapsError(t *testing.T) {
	ctx := context.Background()
	c := gc.NewWithDefaults()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	if _, err := Instantiate(ctx, rt, c); err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	guest, err := rt.Instantiate(ctx, trapModule())
	if err != nil {
		t.Fatalf("guest instantiation failed: %v", err)
	}
	defer guest.Close(ctx)

	_, err = guest.ExportedFunction("run").Call(ctx)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindContract {
		t.Fatalf("err = %v, want contract trap", err)
	}
	if c.Objects() != 0 {
		t.Fatalf("objects = %d, want 0", c.Objects())
	}

	// The collector stays usable after the trap.
	call(t, c, "alloc_tuple", 1)
	call(t, c, "full_gc")
}
