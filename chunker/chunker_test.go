package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberedWords builds n unique words so overlaps can be located exactly.
func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(words, " ")
}

// sharedWords returns the longest run of words that ends prev and starts next.
func sharedWords(prev, next string) []string {
	a := strings.Fields(prev)
	b := strings.Fields(next)
	for k := min(len(a), len(b)); k > 0; k-- {
		if strings.Join(a[len(a)-k:], " ") == strings.Join(b[:k], " ") {
			return b[:k]
		}
	}
	return nil
}

func TestNew_Validation(t *testing.T) {
	_, err := New(WithChunkSize(0))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = New(WithChunkSize(100), WithChunkOverlap(100))
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = New(WithChunkOverlap(-1))
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.Size())
	assert.Equal(t, DefaultChunkOverlap, c.Overlap())
}

func TestSplit_EmptyInput(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\n\t"} {
		pieces, err := c.Split(text)
		require.NoError(t, err)
		assert.Empty(t, pieces)
	}
}

func TestSplit_ShortTextIsOnePiece(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	pieces, err := c.Split("Go is expressive, concise, clean, and efficient.")
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, "Go is expressive, concise, clean, and efficient.", pieces[0])
}

func TestSplit_LongTextOverlaps(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	text := numberedWords(600)
	pieces, err := c.Split(text)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(pieces), 2)

	for i, piece := range pieces {
		assert.NotEmpty(t, strings.TrimSpace(piece))
		assert.LessOrEqual(t, utf8.RuneCountInString(piece), DefaultChunkSize, "piece %d too long", i)
	}

	for i := 1; i < len(pieces); i++ {
		shared := sharedWords(pieces[i-1], pieces[i])
		require.NotEmpty(t, shared, "pieces %d and %d share no overlap", i-1, i)
		assert.LessOrEqual(t, utf8.RuneCountInString(strings.Join(shared, " ")), DefaultChunkOverlap)
	}

	// Every word survives, in order.
	assert.Equal(t, "w000", strings.Fields(pieces[0])[0])
	last := strings.Fields(pieces[len(pieces)-1])
	assert.Equal(t, "w599", last[len(last)-1])
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	c, err := New(WithChunkSize(60), WithChunkOverlap(0))
	require.NoError(t, err)

	text := "First paragraph talks about channels.\n\nSecond paragraph is about goroutines."
	pieces, err := c.Split(text)
	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.Equal(t, "First paragraph talks about channels.", pieces[0])
	assert.Equal(t, "Second paragraph is about goroutines.", pieces[1])
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := New(WithChunkSize(120), WithChunkOverlap(30))
	require.NoError(t, err)

	text := numberedWords(200)
	first, err := c.Split(text)
	require.NoError(t, err)
	second, err := c.Split(text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplit_MeasuresRunes(t *testing.T) {
	c, err := New(WithChunkSize(10), WithChunkOverlap(2))
	require.NoError(t, err)

	pieces, err := c.Split("héllo wörld ñandú")
	require.NoError(t, err)
	for _, piece := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(piece), 10)
	}
}
