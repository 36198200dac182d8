package embedding

import "context"

// Dimension is the vector size the knowledge base is built with.
const Dimension = 384

// Backend produces raw vectors for a batch of texts, one per input in order.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the model behind the backend.
	Name() string
	// Dim returns the size of the vectors the backend produces.
	Dim() int
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
