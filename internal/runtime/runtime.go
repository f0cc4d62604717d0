// Package runtime holds the logic behind the three C-ABI entry points
// cmd/snekrt exports to generated code: formatting a tagged value for
// printing, comparing two tagged values structurally, and mapping an error
// code to its message. It is kept free of cgo so it stays unit-testable
// with ordinary `go test`; cmd/snekrt is the thin cgo wrapper that hands it
// the raw heap words and C-allocated arena described in SPEC_FULL.md §5.7.
package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/snek-lang/snekc/internal/values"
)

// Heap is the read view onto the generated program's vector arena: word i
// is heap[i]. FormatValue and StructEqual index into it whenever a value
// classifies as a heap pointer, after converting the pointer's byte offset
// from the arena base into a word index.
type Heap struct {
	base  int64
	words []int64
}

// NewHeap wraps a contiguous array of arena words. base is the raw pointer
// value of words[0], as seen by generated code (so that a tagged pointer
// word can be converted back into an index via (word-1-base)/8).
func NewHeap(base int64, words []int64) Heap {
	return Heap{base: base, words: words}
}

func (h Heap) wordAt(addr int64) int64 {
	idx := (addr - h.base) / values.WordSize
	return h.words[idx]
}

// ParseInput converts the program's single command-line input argument
// into its tagged representation. Only "true", "false", and base-10
// integers in [values.I63Min, values.I63Max] are accepted; anything else
// is a hard error raised before generated code ever runs, per the CLI
// contract in spec.md §6.
func ParseInput(s string) (int64, error) {
	switch s {
	case "true":
		return values.TrueVal, nil
	case "false":
		return values.FalseVal, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("Invalid input: %q is not a boolean or an integer", s)
	}
	if !values.InRange(n) {
		return 0, errors.Errorf("Invalid input: %d is out of range", n)
	}
	return values.EncodeNumber(n), nil
}

// ErrorMessage returns the message snek_error prints to stderr for the
// given error code, or a generic fallback for an unrecognized one (which
// should never happen for assembly this package's own compiler emitted,
// but a hand-written or corrupted .s file could still call snek_error with
// an arbitrary rdi).
func ErrorMessage(code int64) string {
	return values.ErrorKind(code).Message()
}

// FormatValue renders word the way the Snek REPL/CLI prints a result:
// integers and booleans print literally, nil prints as "nil", and vectors
// print as "[e0, e1, ...]". A vector that (directly or transitively)
// contains itself prints its repeated member as "[...]" instead of
// recursing forever, using a single visited-address set threaded through
// the whole walk - the same cycle-guard discipline
// original_source/src/main.rs's print_value uses.
func FormatValue(word int64, heap Heap) string {
	var sb strings.Builder
	formatValue(word, heap, map[int64]bool{}, &sb)
	return sb.String()
}

func formatValue(word int64, heap Heap, visiting map[int64]bool, sb *strings.Builder) {
	switch {
	case values.IsNumber(word):
		fmt.Fprintf(sb, "%d", values.DecodeNumber(word))
	case word == values.TrueVal:
		sb.WriteString("true")
	case word == values.FalseVal:
		sb.WriteString("false")
	case word == values.NilVal:
		sb.WriteString("nil")
	case values.IsHeapPointer(word):
		formatVector(word, heap, visiting, sb)
	default:
		sb.WriteString("<unknown>")
	}
}

func formatVector(word int64, heap Heap, visiting map[int64]bool, sb *strings.Builder) {
	addr := word - 1
	if visiting[addr] {
		sb.WriteString("[...]")
		return
	}
	visiting[addr] = true
	defer delete(visiting, addr)

	count := heap.wordAt(addr)
	sb.WriteString("[")
	for i := int64(0); i < count; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		elem := heap.wordAt(addr + (i+1)*values.WordSize)
		formatValue(elem, heap, visiting, sb)
	}
	sb.WriteString("]")
}

// StructEqual implements the `equal?`-style deep comparison snek_equals
// exposes. Numbers, booleans, and nil compare by tagged-word equality;
// vectors compare element-wise, co-inductively: a pair of addresses
// already being compared higher up the call stack is assumed equal rather
// than re-descended into, which makes the comparison well-defined (and
// terminating) over cyclic structures instead of diverging, matching the
// handling original_source/src/main.rs gives equal?.
func StructEqual(a, b int64, heap Heap) bool {
	return structEqual(a, b, heap, map[[2]int64]bool{})
}

func structEqual(a, b int64, heap Heap, assumed map[[2]int64]bool) bool {
	if a == b {
		return true
	}
	if !values.IsHeapPointer(a) || !values.IsHeapPointer(b) {
		return false
	}

	addrA, addrB := a-1, b-1
	key := [2]int64{addrA, addrB}
	if assumed[key] {
		return true
	}

	lenA := heap.wordAt(addrA)
	lenB := heap.wordAt(addrB)
	if lenA != lenB {
		return false
	}

	assumed[key] = true
	for i := int64(0); i < lenA; i++ {
		elA := heap.wordAt(addrA + (i+1)*values.WordSize)
		elB := heap.wordAt(addrB + (i+1)*values.WordSize)
		if !structEqual(elA, elB, heap, assumed) {
			return false
		}
	}
	return true
}
