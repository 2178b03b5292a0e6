package chunk

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEmpty(t *testing.T) {
	assert := assert.New(t)

	assert.Empty(Split("", 1000, 200))
}

func TestSplitShorterThanSize(t *testing.T) {
	assert := assert.New(t)

	chunks := Split("  Paris is the capital of France.\n", 1000, 200)

	assert.Len(chunks, 1)
	assert.Equal("Paris is the capital of France.", chunks[0].Content)
	assert.Equal(0, chunks[0].Start)
	assert.Equal(34, chunks[0].End)
	assert.Equal(31, chunks[0].Length)
}

func TestSplitExactlySize(t *testing.T) {
	assert := assert.New(t)

	chunks := Split(strings.Repeat("a", 1000), 1000, 200)

	assert.Len(chunks, 1)
	assert.Equal(1000, chunks[0].End)
}

func TestSplitCoverage(t *testing.T) {
	cases := []struct {
		length  int
		size    int
		overlap int
	}{
		{2500, 1000, 200},
		{1001, 1000, 200},
		{10000, 1000, 200},
		{777, 100, 10},
		{50, 7, 6},
		{3000, 500, 0},
	}

	for _, tc := range cases {
		assert := assert.New(t)

		text := strings.Repeat("x", tc.length)
		chunks := Split(text, tc.size, tc.overlap)

		if !assert.NotEmpty(chunks) {
			continue
		}

		assert.Equal(0, chunks[0].Start)
		assert.Equal(tc.length, chunks[len(chunks)-1].End)

		for i := 1; i < len(chunks); i++ {
			prev, curr := chunks[i-1], chunks[i]
			assert.LessOrEqual(curr.Start, prev.End, "gap between chunk %d and %d", i-1, i)
			assert.Greater(curr.Start, prev.Start, "chunk %d does not advance", i)
			assert.Equal(tc.overlap, prev.End-curr.Start)
		}

		for _, c := range chunks {
			assert.LessOrEqual(c.End-c.Start, tc.size)
		}

		expected := math.Ceil(float64(tc.length-tc.overlap) / float64(tc.size-tc.overlap))
		assert.InDelta(expected, float64(len(chunks)), 1,
			"length=%d size=%d overlap=%d", tc.length, tc.size, tc.overlap)
	}
}

func TestSplitRuneOffsets(t *testing.T) {
	assert := assert.New(t)

	text := strings.Repeat("é", 15)
	chunks := Split(text, 10, 5)

	assert.Len(chunks, 2)
	assert.Equal(strings.Repeat("é", 10), chunks[0].Content)
	assert.Equal(5, chunks[1].Start)
	assert.Equal(15, chunks[1].End)
	assert.Equal(10, chunks[1].Length)
}

func TestNewClampsOverlap(t *testing.T) {
	assert := assert.New(t)

	c := New(WithSize(100), WithOverlap(100))
	assert.Equal(25, c.Overlap())

	chunks := c.Split(strings.Repeat("y", 1000))
	assert.NotEmpty(chunks)
	assert.Equal(1000, chunks[len(chunks)-1].End)
}

func TestNewIgnoresInvalidOptions(t *testing.T) {
	assert := assert.New(t)

	c := New(WithSize(-1), WithOverlap(-5))

	assert.Equal(DefaultSize, c.Size())
	assert.Equal(DefaultOverlap, c.Overlap())
}
