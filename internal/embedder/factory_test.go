package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvOllamaURL, "")
}

func TestNew_ProviderSelection(t *testing.T) {
	clearProviderEnv(t)

	emb, err := New(Config{Provider: ProviderLocal})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(Config{}) // empty provider defaults to local
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(Config{Provider: ProviderOpenAI, APIKey: "sk-test", Model: "custom-model"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())
	assert.Equal(t, "custom-model", emb.Model())

	emb, err = New(Config{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, emb.Provider())
	assert.Equal(t, DefaultOllamaModel, emb.Model())

	_, err = New(Config{Provider: "quantum"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	clearProviderEnv(t)

	_, err := New(Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestDetectProvider(t *testing.T) {
	clearProviderEnv(t)
	assert.Equal(t, ProviderLocal, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvProvider, "OLLAMA")
	assert.Equal(t, ProviderOllama, DetectProvider())
}

func TestNewFromEnv_Local(t *testing.T) {
	clearProviderEnv(t)

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	t.Setenv(EnvProvider, "unknown-provider")
	_, err = NewFromEnv()
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
