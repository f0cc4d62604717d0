package values

import "testing"

func TestEncodeDecodeNumber(t *testing.T) {
	cases := []int64{0, 1, -1, 42, I63Min, I63Max}
	for _, n := range cases {
		got := DecodeNumber(EncodeNumber(n))
		if got != n {
			t.Errorf("DecodeNumber(EncodeNumber(%d)) = %d, want %d", n, got, n)
		}
	}
}

func TestInRange(t *testing.T) {
	if !InRange(I63Min) || !InRange(I63Max) {
		t.Error("I63Min/I63Max should be in range")
	}
	if InRange(I63Max + 1) {
		t.Error("I63Max+1 should be out of range")
	}
	if InRange(I63Min - 1) {
		t.Error("I63Min-1 should be out of range")
	}
}

func TestClassification(t *testing.T) {
	if !IsNumber(EncodeNumber(5)) {
		t.Error("encoded number should classify as a number")
	}
	if IsNumber(TrueVal) || IsNumber(FalseVal) || IsNumber(NilVal) {
		t.Error("booleans and nil should not classify as numbers")
	}
	if !IsBoolean(TrueVal) || !IsBoolean(FalseVal) {
		t.Error("TrueVal/FalseVal should classify as booleans")
	}
	if IsBoolean(NilVal) {
		t.Error("nil should not classify as a boolean")
	}

	heapWord := int64(0x1008) | 1
	if !IsHeapPointer(heapWord) {
		t.Error("a tagged heap address should classify as a heap pointer")
	}
	if IsHeapPointer(NilVal) || IsHeapPointer(TrueVal) || IsHeapPointer(FalseVal) {
		t.Error("nil/true/false should not classify as heap pointers")
	}
}

func TestErrorCatalog(t *testing.T) {
	kinds := AllErrorKinds()
	if len(kinds) != 6 {
		t.Fatalf("expected 6 error kinds, got %d", len(kinds))
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		if k.Label() == "snek_error_unknown" {
			t.Errorf("kind %d has no label", k)
		}
		if seen[k.Label()] {
			t.Errorf("duplicate label %s", k.Label())
		}
		seen[k.Label()] = true
		if k.Message() == "unknown error" {
			t.Errorf("kind %d has no message", k)
		}
	}
	if ErrInvalidVectorSize.Message() != "vector address out of bounds" {
		t.Errorf("ErrInvalidVectorSize.Message() = %q, want the shared heap-exhaustion message", ErrInvalidVectorSize.Message())
	}
}
