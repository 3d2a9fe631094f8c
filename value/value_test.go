package value

import (
	"sort"
	"testing"
)

func TestRef_Pack(t *testing.T) {
	r := MakeRef(7, 3)
	if r.Index() != 7 {
		t.Fatalf("Index() = %d, want 7", r.Index())
	}
	if r.Gen() != 3 {
		t.Fatalf("Gen() = %d, want 3", r.Gen())
	}
	if r.String() != "#7.3" {
		t.Fatalf("String() = %q", r.String())
	}
	if Ref(0).String() != "nil" || !Ref(0).IsNil() {
		t.Fatal("zero ref should be nil")
	}
}

func TestValue_Discriminant(t *testing.T) {
	tests := []struct {
		name  string
		v     Value
		isRef bool
		isNil bool
		ref   Ref
	}{
		{"nil", Nil, false, true, 0},
		{"immediate", Immediate(42), false, false, 0},
		{"immediate looks like handle", Immediate(uint64(MakeRef(1, 1))), false, false, 0},
		{"ref", Of(MakeRef(1, 1)), true, false, MakeRef(1, 1)},
		{"null ref", Of(0), false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.v.IsRef() != tt.isRef {
				t.Errorf("IsRef() = %v, want %v", tt.v.IsRef(), tt.isRef)
			}
			if tt.v.IsNil() != tt.isNil {
				t.Errorf("IsNil() = %v, want %v", tt.v.IsNil(), tt.isNil)
			}
			if tt.v.Ref() != tt.ref {
				t.Errorf("Ref() = %v, want %v", tt.v.Ref(), tt.ref)
			}
		})
	}
}

func TestValue_MapKey(t *testing.T) {
	m := map[Value]int{}
	m[Immediate(1)] = 1
	m[Of(MakeRef(1, 0))] = 2
	m[Immediate(1)] = 3

	if len(m) != 2 {
		t.Fatalf("len = %d, want 2", len(m))
	}
	if m[Immediate(1)] != 3 {
		t.Fatal("immediate key not overwritten")
	}
}

func TestFromWire(t *testing.T) {
	v, ok := FromWire(uint32(TagRef), uint64(MakeRef(2, 5)))
	if !ok || v.Ref() != MakeRef(2, 5) {
		t.Fatalf("FromWire ref = %v, %v", v, ok)
	}
	v, ok = FromWire(uint32(TagImmediate), 9)
	if !ok || v != Immediate(9) {
		t.Fatalf("FromWire imm = %v, %v", v, ok)
	}
	if _, ok := FromWire(99, 0); ok {
		t.Fatal("unknown tag should be rejected")
	}
}

func TestCompare(t *testing.T) {
	vals := []Value{
		Of(MakeRef(2, 1)),
		Immediate(5),
		Nil,
		Immediate(1),
		Of(MakeRef(1, 1)),
	}
	sort.Slice(vals, func(i, j int) bool { return Less(vals[i], vals[j]) })

	want := []Value{Nil, Immediate(1), Immediate(5), Of(MakeRef(1, 1)), Of(MakeRef(2, 1))}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, vals[i], want[i])
		}
	}
	if Compare(Immediate(3), Immediate(3)) != 0 {
		t.Fatal("equal values should compare 0")
	}
}
