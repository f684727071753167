package port

import "kb/internal/domain"

// Chunker splits a document body into ordered text segments sized for
// embedding. Implementations must be deterministic.
type Chunker interface {
	Chunk(body string) []domain.Chunk
}

// TokenEstimator approximates the token count of a text. The default
// implementation uses a fixed character-to-token ratio; a real tokenizer can
// be swapped in without changing chunker control flow.
type TokenEstimator func(text string) int
