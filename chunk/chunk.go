// Package chunk splits extracted text into overlapping fixed-size spans.
package chunk

import "strings"

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunk is a span of text. Offsets are rune offsets into the source text,
// End is exclusive and clipped at the end of the text.
type Chunk struct {
	Content string `json:"content"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Length  int    `json:"length"`
}

type Option func(*Chunker)

func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

type Chunker struct {
	size    int
	overlap int
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// overlap must stay below size or the window never advances
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split runs a sliding window over text. Each window starts where the
// previous one ended minus the overlap; the last window is the one that
// reaches the end of the text.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, estimate(len(runes), c.size, c.overlap))

	start := 0
	for start < len(runes) {
		end := min(start+c.size, len(runes))

		content := strings.TrimSpace(string(runes[start:end]))
		chunks = append(chunks, Chunk{
			Content: content,
			Start:   start,
			End:     end,
			Length:  len([]rune(content)),
		})

		if end >= len(runes) {
			break
		}

		start = end - c.overlap
	}

	return chunks
}

// Split is a shorthand for New(WithSize(size), WithOverlap(overlap)).Split(text).
func Split(text string, size, overlap int) []Chunk {
	return New(WithSize(size), WithOverlap(overlap)).Split(text)
}

func estimate(length, size, overlap int) int {
	if length <= size {
		return 1
	}

	step := size - overlap
	return (length-overlap+step-1)/step + 1
}
