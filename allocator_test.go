package gcruntime

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/gc-runtime/errors"
)

func TestBudget_AllocFree(t *testing.T) {
	b := NewBudget(100)

	if err := b.Alloc(60); err != nil {
		t.Fatalf("Alloc(60): %v", err)
	}
	if err := b.Alloc(40); err != nil {
		t.Fatalf("Alloc(40): %v", err)
	}
	if b.Used() != 100 {
		t.Fatalf("Used() = %d, want 100", b.Used())
	}

	err := b.Alloc(1)
	if err == nil {
		t.Fatal("Alloc past limit should fail")
	}
	if !stderrors.Is(err, errors.ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}

	b.Free(60)
	if err := b.Alloc(1); err != nil {
		t.Fatalf("Alloc after Free: %v", err)
	}
	if b.Used() != 41 {
		t.Fatalf("Used() = %d, want 41", b.Used())
	}
}

func TestBudget_SetLimit(t *testing.T) {
	b := NewBudget(10)
	if err := b.Alloc(10); err != nil {
		t.Fatal(err)
	}
	b.SetLimit(5)
	if err := b.Alloc(1); err == nil {
		t.Fatal("expected failure after lowering limit")
	}
	b.Free(10)
	if err := b.Alloc(5); err != nil {
		t.Fatalf("Alloc(5): %v", err)
	}
}

func TestBudget_OverFreePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewBudget(10).Free(1)
}

func TestUnbounded(t *testing.T) {
	var u Unbounded
	for i := 0; i < 1000; i++ {
		if err := u.Alloc(1 << 20); err != nil {
			t.Fatalf("Unbounded.Alloc failed: %v", err)
		}
	}
	u.Free(1 << 20)
	if u.Used() != 999<<20 {
		t.Fatalf("Used() = %d", u.Used())
	}
	if u.Limit() != 0 {
		t.Fatal("Unbounded should report no limit")
	}
}
