package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snek-lang/snekc/internal/values"
)

func TestParseInput(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"true", values.TrueVal},
		{"false", values.FalseVal},
		{"0", values.EncodeNumber(0)},
		{"-17", values.EncodeNumber(-17)},
	}
	for _, c := range cases {
		got, err := ParseInput(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseInputRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "maybe", "3.14", "0x10"} {
		_, err := ParseInput(in)
		assert.Errorf(t, err, "ParseInput(%q) should fail", in)
	}
}

func TestParseInputRejectsOutOfRange(t *testing.T) {
	_, err := ParseInput("99999999999999999999")
	assert.Error(t, err)
}

// testBase is the address the test arenas start at. It is nonzero because
// a tagged pointer to address 0 would be the word 1, which is nil.
const testBase int64 = 0x1000

// buildHeap wraps words as an arena whose first word sits at testBase; each
// test lays out its own vectors in words.
func buildHeap(words []int64) Heap {
	return NewHeap(testBase, words)
}

func TestFormatValuePrimitives(t *testing.T) {
	h := buildHeap(nil)
	assert.Equal(t, "5", FormatValue(values.EncodeNumber(5), h))
	assert.Equal(t, "-3", FormatValue(values.EncodeNumber(-3), h))
	assert.Equal(t, "true", FormatValue(values.TrueVal, h))
	assert.Equal(t, "false", FormatValue(values.FalseVal, h))
	assert.Equal(t, "nil", FormatValue(values.NilVal, h))
}

func TestFormatValueVector(t *testing.T) {
	// word 0: count=2, word 1: 10, word 2: 20 (all raw words as they sit in the arena)
	words := []int64{2, values.EncodeNumber(10), values.EncodeNumber(20)}
	h := buildHeap(words)
	ptr := testBase | 1 // tagged pointer to the arena's first word
	assert.Equal(t, "[10, 20]", FormatValue(ptr, h))
}

func TestFormatValueCyclicVector(t *testing.T) {
	// A one-element vector whose element points back to itself.
	words := []int64{1, testBase | 1}
	h := buildHeap(words)
	ptr := testBase | 1
	assert.Equal(t, "[[...]]", FormatValue(ptr, h))
}

func TestStructEqualPrimitives(t *testing.T) {
	h := buildHeap(nil)
	assert.True(t, StructEqual(values.EncodeNumber(5), values.EncodeNumber(5), h))
	assert.False(t, StructEqual(values.EncodeNumber(5), values.EncodeNumber(6), h))
	assert.True(t, StructEqual(values.TrueVal, values.TrueVal, h))
	assert.False(t, StructEqual(values.TrueVal, values.FalseVal, h))
}

func TestStructEqualVectorsByContent(t *testing.T) {
	// Two separate vectors at different addresses with equal contents.
	words := []int64{
		2, values.EncodeNumber(1), values.EncodeNumber(2), // addr 0..2
		2, values.EncodeNumber(1), values.EncodeNumber(2), // addr 3..5
	}
	h := buildHeap(words)
	a := testBase | 1
	b := (testBase + 3*values.WordSize) | 1
	assert.True(t, StructEqual(a, b, h))
}

func TestStructEqualDiffersOnLength(t *testing.T) {
	words := []int64{
		1, values.EncodeNumber(1),
		2, values.EncodeNumber(1), values.EncodeNumber(2),
	}
	h := buildHeap(words)
	a := testBase | 1
	b := (testBase + 2*values.WordSize) | 1
	assert.False(t, StructEqual(a, b, h))
}

func TestStructEqualCyclicVectorsEqual(t *testing.T) {
	// Two distinct self-referential one-element vectors: each points to
	// itself, so structurally they are indistinguishable cycles.
	bAddr := testBase + 2*values.WordSize
	words := []int64{
		1, testBase | 1,
		1, bAddr | 1,
	}
	h := buildHeap(words)
	a := testBase | 1
	b := bAddr | 1
	assert.True(t, StructEqual(a, b, h))
}

func TestErrorMessageCatalog(t *testing.T) {
	assert.Equal(t, "numeric overflow", ErrorMessage(int64(values.ErrOverflow)))
	assert.Equal(t, "vector address out of bounds", ErrorMessage(int64(values.ErrInvalidVectorSize)))
}
