package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoriakit/memoria/pkg/types"
)

func testConfig() types.ChunkingConfig {
	return types.ChunkingConfig{
		Name:                "test",
		WindowSize:          200,
		Overlap:             50,
		MinChunkSize:        128,
		MaxChunkSize:        400,
		SimilarityThreshold: 0.55,
	}
}

func TestNewSentenceSplitter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.ChunkingConfig)
	}{
		{"zero window", func(c *types.ChunkingConfig) { c.WindowSize = 0 }},
		{"zero overlap", func(c *types.ChunkingConfig) { c.Overlap = 0 }},
		{"overlap equals window", func(c *types.ChunkingConfig) { c.Overlap = c.WindowSize }},
		{"min not below max", func(c *types.ChunkingConfig) { c.MinChunkSize = c.MaxChunkSize }},
		{"threshold above one", func(c *types.ChunkingConfig) { c.SimilarityThreshold = 1.5 }},
		{"negative threshold", func(c *types.ChunkingConfig) { c.SimilarityThreshold = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewSentenceSplitter(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	s, err := NewSentenceSplitter(testConfig())
	require.NoError(t, err)

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\t  "))
}

func TestSplit_Sentences(t *testing.T) {
	s, err := NewSentenceSplitter(testConfig())
	require.NoError(t, err)

	segments := s.Split("The cat sat down. The dog barked loudly! Did anyone notice?")
	require.Len(t, segments, 3)

	assert.Equal(t, "The cat sat down.", segments[0].Text)
	assert.Equal(t, 0, segments[0].StartToken)
	assert.Equal(t, 4, segments[0].EndToken)

	assert.Equal(t, "The dog barked loudly!", segments[1].Text)
	assert.Equal(t, 4, segments[1].StartToken)
	assert.Equal(t, 8, segments[1].EndToken)

	assert.Equal(t, "Did anyone notice?", segments[2].Text)
	assert.Equal(t, 8, segments[2].StartToken)
	assert.Equal(t, 11, segments[2].EndToken)
}

func TestSplit_AbbreviationGuard(t *testing.T) {
	s, err := NewSentenceSplitter(testConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want int // expected segment count
	}{
		{"title abbreviation", "Dr. Smith arrived early. She left at noon.", 2},
		{"latin abbreviation", "Use a cache, e.g. an LRU. It keeps lookups fast.", 2},
		{"initials", "J. R. R. Tolkien wrote it. Many read it.", 2},
		{"decimal number", "The value of pi is 3.14 roughly. Close enough for us.", 2},
		{"enumeration marker", "Step 1. mix the parts. Step 2. wait an hour.", 2},
		{"multi-period abbreviation", "She moved to the U.S. last year. It was sudden.", 2},
		{"closing quote", `He said "stop." Then he left.`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := s.Split(tt.text)
			assert.Len(t, segments, tt.want)
		})
	}
}

func TestSplit_TrailingTextWithoutTerminator(t *testing.T) {
	s, err := NewSentenceSplitter(testConfig())
	require.NoError(t, err)

	segments := s.Split("A full sentence here. then a trailing fragment")
	require.Len(t, segments, 2)
	assert.Equal(t, "then a trailing fragment", segments[1].Text)
	assert.Equal(t, 8, segments[1].EndToken)
}

func TestSplit_WindowFallback(t *testing.T) {
	s, err := NewSentenceSplitter(testConfig())
	require.NoError(t, err)

	// 1000 tokens, no punctuation anywhere
	words := make([]string, 1000)
	for i := range words {
		words[i] = "word"
	}
	segments := s.Split(strings.Join(words, " "))
	require.NotEmpty(t, segments)

	stride := 150 // window 200 - overlap 50
	for i, seg := range segments {
		assert.Equal(t, i*stride, seg.StartToken, "segment %d start", i)
		assert.LessOrEqual(t, seg.TokenCount(), 200)
	}
	assert.Equal(t, 1000, segments[len(segments)-1].EndToken, "last window reaches the end")
}

func TestSplit_Deterministic(t *testing.T) {
	s, err := NewSentenceSplitter(testConfig())
	require.NoError(t, err)

	text := "First sentence here. Second one follows! A third, with no end"
	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestTokenize(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Equal(t, []string{"a", "b", "c"}, Tokenize("  a\tb\n c "))
}
