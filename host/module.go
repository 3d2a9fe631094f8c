package host

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/gc-runtime/errors"
	"github.com/wippyai/gc-runtime/gc"
	"github.com/wippyai/gc-runtime/value"
)

// ModuleName is the import module guests use for collector functions.
const ModuleName = "gc"

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// function is one export of the host module.
type function struct {
	fn      func(c *gc.Collector, stack []uint64)
	name    string
	params  []api.ValueType
	results []api.ValueType
}

// Instantiate registers the "gc" host module backed by c in rt.
//
// Heap values cross the boundary as a (tag i32, word i64) pair; see
// value.FromWire. Allocation functions return the new handle as an i64.
// Store functions run the write barrier on the stored value, so guests only
// call mark for stores the host does not see.
//
// Out-of-memory and every contract violation trap the calling guest. The
// error returned from the guest call wraps the *errors.Error.
func Instantiate(ctx context.Context, rt wazero.Runtime, c *gc.Collector) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ModuleName)
	for _, f := range functions {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(bind(c, f), f.params, f.results).
			WithName(f.name).
			Export(f.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "instantiate gc host module")
	}
	Logger().Debug("gc host module instantiated", zap.Int("functions", len(functions)))
	return mod, nil
}

// Exports lists the function names of the host module.
func Exports() []string {
	names := make([]string, len(functions))
	for i, f := range functions {
		names[i] = f.name
	}
	return names
}

func bind(c *gc.Collector, f function) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		defer func() {
			if r := recover(); r != nil {
				Logger().Debug("gc host call trapped",
					zap.String("function", f.name),
					zap.Any("panic", r))
				panic(r)
			}
		}()
		f.fn(c, stack)
	}
}

func wireValue(fn string, tag, word uint64) value.Value {
	v, ok := value.FromWire(uint32(tag), word)
	if !ok {
		panic(errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(uint32(tag)).
			Detail("%s: unknown value tag %d", fn, uint32(tag)).
			Build())
	}
	return v
}

// storedValue decodes a value about to be written into the heap. A freed
// handle is rejected before the store so it never becomes reachable.
func storedValue(c *gc.Collector, fn string, tag, word uint64) value.Value {
	v := wireValue(fn, tag, word)
	if v.IsRef() && !c.Valid(v.Ref()) {
		panic(errors.StaleRef(errors.PhaseHost, v.Ref()))
	}
	return v
}

func putValue(stack []uint64, v value.Value) {
	stack[0] = uint64(v.Tag())
	stack[1] = v.Word()
}

func ref(word uint64) value.Ref {
	return value.Ref(word)
}

func index(fn string, raw uint64) int {
	i := int32(uint32(raw))
	if i < 0 {
		panic(errors.InvalidInput(errors.PhaseHost, fn+": negative index"))
	}
	return int(i)
}

func allocated(fn string, stack []uint64, r value.Ref, err error) {
	if err != nil {
		panic(errors.Wrap(errors.PhaseHost, errors.KindOutOfMemory, err, fn))
	}
	stack[0] = uint64(r)
}

func boolean(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

var functions = []function{
	{
		name: "alloc_string", params: []api.ValueType{i32}, results: []api.ValueType{i64},
		fn: func(c *gc.Collector, stack []uint64) {
			r, err := c.AllocString(index("alloc_string", stack[0]))
			allocated("alloc_string", stack, r, err)
		},
	},
	{
		name: "alloc_tuple", params: []api.ValueType{i32}, results: []api.ValueType{i64},
		fn: func(c *gc.Collector, stack []uint64) {
			r, err := c.AllocTuple(index("alloc_tuple", stack[0]))
			allocated("alloc_tuple", stack, r, err)
		},
	},
	{
		name: "alloc_array", params: []api.ValueType{i32}, results: []api.ValueType{i64},
		fn: func(c *gc.Collector, stack []uint64) {
			r, err := c.AllocArray(index("alloc_array", stack[0]))
			allocated("alloc_array", stack, r, err)
		},
	},
	{
		name: "alloc_hash", params: []api.ValueType{i32}, results: []api.ValueType{i64},
		fn: func(c *gc.Collector, stack []uint64) {
			r, err := c.AllocHash(index("alloc_hash", stack[0]))
			allocated("alloc_hash", stack, r, err)
		},
	},
	{
		name: "alloc_tree_map", results: []api.ValueType{i64},
		fn: func(c *gc.Collector, stack []uint64) {
			r, err := c.AllocTreeMap()
			allocated("alloc_tree_map", stack, r, err)
		},
	},
	{
		// tuple_set(ref, index, tag, word)
		name: "tuple_set", params: []api.ValueType{i64, i32, i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			v := storedValue(c, "tuple_set", stack[2], stack[3])
			c.Tuple(ref(stack[0])).Set(index("tuple_set", stack[1]), v)
			c.Mark(v)
		},
	},
	{
		// tuple_get(ref, index) -> (tag, word)
		name: "tuple_get", params: []api.ValueType{i64, i32}, results: []api.ValueType{i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			putValue(stack, c.Tuple(ref(stack[0])).Get(index("tuple_get", stack[1])))
		},
	},
	{
		// array_push(ref, tag, word)
		name: "array_push", params: []api.ValueType{i64, i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			v := storedValue(c, "array_push", stack[1], stack[2])
			c.Array(ref(stack[0])).Push(v)
			c.Mark(v)
		},
	},
	{
		// array_get(ref, index) -> (tag, word)
		name: "array_get", params: []api.ValueType{i64, i32}, results: []api.ValueType{i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			putValue(stack, c.Array(ref(stack[0])).Get(index("array_get", stack[1])))
		},
	},
	{
		name: "array_len", params: []api.ValueType{i64}, results: []api.ValueType{i32},
		fn: func(c *gc.Collector, stack []uint64) {
			stack[0] = uint64(c.Array(ref(stack[0])).Len())
		},
	},
	{
		// hash_put(ref, ktag, kword, vtag, vword)
		name: "hash_put", params: []api.ValueType{i64, i32, i64, i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			k := storedValue(c, "hash_put", stack[1], stack[2])
			v := storedValue(c, "hash_put", stack[3], stack[4])
			c.Hash(ref(stack[0])).Put(k, v)
			c.Mark(k)
			c.Mark(v)
		},
	},
	{
		// hash_get(ref, ktag, kword) -> (found, tag, word)
		name: "hash_get", params: []api.ValueType{i64, i32, i64}, results: []api.ValueType{i32, i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			k := wireValue("hash_get", stack[1], stack[2])
			v, ok := c.Hash(ref(stack[0])).Get(k)
			stack[0] = boolean(ok)
			putValue(stack[1:], v)
		},
	},
	{
		// tree_map_put(ref, ktag, kword, vtag, vword)
		name: "tree_map_put", params: []api.ValueType{i64, i32, i64, i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			k := storedValue(c, "tree_map_put", stack[1], stack[2])
			v := storedValue(c, "tree_map_put", stack[3], stack[4])
			c.OrderedMap(ref(stack[0])).Put(k, v)
			c.Mark(k)
			c.Mark(v)
		},
	},
	{
		// tree_map_get(ref, ktag, kword) -> (found, tag, word)
		name: "tree_map_get", params: []api.ValueType{i64, i32, i64}, results: []api.ValueType{i32, i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			k := wireValue("tree_map_get", stack[1], stack[2])
			v, ok := c.OrderedMap(ref(stack[0])).Get(k)
			stack[0] = boolean(ok)
			putValue(stack[1:], v)
		},
	},
	{
		name: "add_to_root", params: []api.ValueType{i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			c.AddToRoot(wireValue("add_to_root", stack[0], stack[1]))
		},
	},
	{
		name: "remove_from_root", params: []api.ValueType{i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			c.RemoveFromRoot(wireValue("remove_from_root", stack[0], stack[1]))
		},
	},
	{
		name: "mark", params: []api.ValueType{i32, i64},
		fn: func(c *gc.Collector, stack []uint64) {
			c.Mark(wireValue("mark", stack[0], stack[1]))
		},
	},
	{
		name: "step",
		fn:   func(c *gc.Collector, _ []uint64) { c.Step() },
	},
	{
		name: "finish_gc",
		fn:   func(c *gc.Collector, _ []uint64) { c.FinishGC() },
	},
	{
		name: "full_gc",
		fn:   func(c *gc.Collector, _ []uint64) { c.FullGC() },
	},
	{
		name: "objects", results: []api.ValueType{i32},
		fn: func(c *gc.Collector, stack []uint64) {
			stack[0] = uint64(c.Objects())
		},
	},
	{
		// phase() -> 0 idle, 1 mark, 2 sweep
		name: "phase", results: []api.ValueType{i32},
		fn: func(c *gc.Collector, stack []uint64) {
			stack[0] = uint64(c.Phase())
		},
	},
}
