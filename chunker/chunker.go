// Package chunker splits text into overlapping pieces sized for embedding.
//
// Splitting is recursive: paragraph breaks are preferred over line breaks,
// line breaks over spaces, and a hard cut is the last resort. Length is
// measured in runes.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var (
	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrInvalidOverlap is returned when the overlap is negative or not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// Chunker splits text. It is stateless and safe for concurrent use.
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum piece length in runes.
func WithChunkSize(n int) Option {
	return func(c *Chunker) {
		c.size = n
	}
}

// WithChunkOverlap sets how many trailing runes of a piece may be repeated
// at the head of the next one.
func WithChunkOverlap(n int) Option {
	return func(c *Chunker) {
		c.overlap = n
	}
}

// New creates a Chunker, defaulting to 1000-rune pieces with 200 runes of overlap.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidOverlap, c.size, c.overlap)
	}

	c.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return c, nil
}

// Size returns the configured maximum piece length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered, non-empty pieces of text.
// Whitespace-only input yields no pieces.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	pieces, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) != "" {
			out = append(out, piece)
		}
	}
	return out, nil
}
