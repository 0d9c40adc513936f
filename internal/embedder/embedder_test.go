package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	cache := NewCache(2)

	hash := ComputeHash("hello")
	cache.Set(hash, []float32{1, 2, 3})

	vec, ok := cache.Get(hash)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	// mutating the returned slice must not touch the cached value
	vec[0] = 99
	again, ok := cache.Get(hash)
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])

	// LRU eviction at capacity
	cache.Set(ComputeHash("b"), []float32{2})
	cache.Set(ComputeHash("c"), []float32{3})
	assert.Equal(t, 2, cache.Size())

	cache.Clear()
	assert.Zero(t, cache.Size())
	_, ok = cache.Get(hash)
	assert.False(t, ok)
}

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("same"), ComputeHash("same"))
	assert.NotEqual(t, ComputeHash("same"), ComputeHash("different"))
	assert.Len(t, ComputeHash("x"), 64)
}

func TestLocalProvider_Generate(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx := context.Background()

	vec, err := p.Generate(ctx, "some text")
	require.NoError(t, err)
	assert.Len(t, vec, LocalDimension)

	// deterministic
	again, err := p.Generate(ctx, "some text")
	require.NoError(t, err)
	assert.Equal(t, vec, again)

	other, err := p.Generate(ctx, "other text")
	require.NoError(t, err)
	assert.NotEqual(t, vec, other)
}

func TestLocalProvider_EmptyTextIsNil(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	vec, err := p.Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestLocalProvider_BatchAlignment(t *testing.T) {
	p, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)

	vectors, err := p.GenerateBatch(context.Background(), []string{"a", "", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	assert.Len(t, vectors[0], LocalDimension)
	assert.Nil(t, vectors[1], "empty text keeps a nil slot")
	assert.Len(t, vectors[2], LocalDimension)
}

func TestGenerateBatch_Validation(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = p.GenerateBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = "t"
	}
	_, err = p.GenerateBatch(context.Background(), tooMany)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestGenerateBatch_UsesCache(t *testing.T) {
	cache := NewCache(10)
	calls := 0
	call := func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(len(texts[i]))}
		}
		return out, nil
	}

	ctx := context.Background()
	first, err := generateBatch(ctx, []string{"aa", "bbb"}, cache, call)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// everything cached: no second provider call
	second, err := generateBatch(ctx, []string{"aa", "bbb"}, cache, call)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGenerateBatch_VectorCountMismatch(t *testing.T) {
	call := func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil // one vector regardless of input size
	}

	_, err := generateBatch(context.Background(), []string{"a", "b"}, nil, call)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestNormalizeVector(t *testing.T) {
	normalized := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, normalized[0], 1e-6)
	assert.InDelta(t, 0.8, normalized[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}
