package chunking

import "github.com/memoriakit/memoria/pkg/types"

// DefaultProfileName is used when an entity names no profile or an unknown
// one.
const DefaultProfileName = "default"

// Profile pairs the parent and child chunking configurations for one kind of
// text.
type Profile struct {
	Parent types.ChunkingConfig
	Child  types.ChunkingConfig
}

// Validate checks both configurations.
func (p Profile) Validate() error {
	if err := p.Parent.Validate(); err != nil {
		return err
	}
	return p.Child.Validate()
}

// DefaultProfile returns the built-in profile used for general prose.
// Parents are paragraph-scale for context; children are sentence-scale for
// precise retrieval.
func DefaultProfile() Profile {
	return Profile{
		Parent: types.ChunkingConfig{
			Name:                "default-parent",
			WindowSize:          200,
			Overlap:             50,
			MinChunkSize:        128,
			MaxChunkSize:        400,
			SimilarityThreshold: 0.55,
		},
		Child: types.ChunkingConfig{
			Name:                "default-child",
			WindowSize:          100,
			Overlap:             25,
			MinChunkSize:        32,
			MaxChunkSize:        128,
			SimilarityThreshold: 0.60,
		},
	}
}
