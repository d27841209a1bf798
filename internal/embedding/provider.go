package embedding

import (
	"context"

	"github.com/iomega/spec2vec-gnps/internal/document"
)

// Provider generates embeddings from spectrum documents.
type Provider interface {
	// Embed generates an embedding for the given document.
	Embed(ctx context.Context, doc *document.SpectrumDocument) (Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions.
	Dimensions() int
}
