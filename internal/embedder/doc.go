// Package embedder generates vector embeddings for text.
//
// Three providers are available: OpenAI (remote API), Ollama (local server),
// and an offline deterministic provider used when neither is configured. All
// providers share the same contract: empty text produces a nil vector rather
// than an error, batch results are index-aligned with their inputs, and
// remote calls are retried with exponential backoff.
//
// An optional LRU cache keyed by content hash sits in front of every
// provider, so re-indexing unchanged text never repeats an API call.
//
// Provider selection:
//
//	emb, err := embedder.NewFromEnv()
//
// or explicitly:
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderOllama,
//	    Model:     "nomic-embed-text",
//	    CacheSize: 10000,
//	})
package embedder
