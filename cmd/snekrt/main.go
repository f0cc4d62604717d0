// Command snekrt is the runtime shim that links against an assembled Snek
// program and runs it. The compiled program exports our_code_starts_here;
// snekrt imports it via cgo, calls it with the program's input value and a
// freshly allocated heap arena, and prints (or traps on) the result.
//
// The object file produced by running nasm over snekc's output is supplied
// at link time - see SPEC_FULL.md §5.7 - via cgo's LDFLAGS, the same way a
// course compiler's runtime.c would be linked against main.s.
package main

/*
#cgo LDFLAGS: -L. -lsnekprogram
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

extern int64_t our_code_starts_here(int64_t input, int64_t heap_start, int64_t heap_end);
*/
import "C"

import (
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/snek-lang/snekc/internal/runtime"
	"github.com/snek-lang/snekc/internal/values"
)

// defaultHeapWords is the arena size used when -heap-words is not given.
// Generated code checks allocations against the heap end passed to
// our_code_starts_here at run time, so the arena size is chosen here rather
// than by snekc.
const defaultHeapWords = 1 << 20

var exported *Arena

func main() {
	heapWords := flag.Int("heap-words", defaultHeapWords, "number of 8-byte words to reserve for the vector heap arena")
	flag.Parse()

	input := "false"
	if flag.NArg() > 0 {
		input = flag.Arg(0)
	}

	tagged, err := runtime.ParseInput(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	arena := newArena(*heapWords)
	exported = arena
	defer arena.free()

	result := C.our_code_starts_here(C.int64_t(tagged), C.int64_t(arena.startWord()), C.int64_t(arena.endWord()))

	fmt.Println(runtime.FormatValue(int64(result), arena.heap()))
}

// Arena is the C-allocated vector heap. It must not be Go-managed memory:
// generated code holds raw pointers into it across arbitrary stretches of
// execution, which Go's moving garbage collector could relocate or
// reclaim out from under, so the backing store is C.malloc'd and freed
// explicitly instead.
type Arena struct {
	ptr   unsafe.Pointer
	words int
}

func newArena(words int) *Arena {
	size := C.size_t(words) * C.size_t(values.WordSize)
	ptr := C.malloc(size)
	C.memset(ptr, 0, size)
	return &Arena{ptr: ptr, words: words}
}

func (a *Arena) free() { C.free(a.ptr) }

func (a *Arena) startWord() int64 { return int64(uintptr(a.ptr)) }
func (a *Arena) endWord() int64   { return a.startWord() + int64(a.words)*values.WordSize }

// heap returns a read view over the arena for runtime.FormatValue and
// runtime.StructEqual to walk once generated code has returned.
func (a *Arena) heap() runtime.Heap {
	slice := unsafe.Slice((*int64)(a.ptr), a.words)
	return runtime.NewHeap(a.startWord(), slice)
}

//export snek_print
func snek_print(val C.int64_t) C.int64_t {
	fmt.Println(runtime.FormatValue(int64(val), exported.heap()))
	return val
}

//export snek_equals
func snek_equals(a, b C.int64_t) C.int64_t {
	if runtime.StructEqual(int64(a), int64(b), exported.heap()) {
		return C.int64_t(values.TrueVal)
	}
	return C.int64_t(values.FalseVal)
}

//export snek_error
func snek_error(code C.int64_t) {
	fmt.Fprintln(os.Stderr, "an error occurred:", runtime.ErrorMessage(int64(code)))
	os.Exit(int(code))
}
