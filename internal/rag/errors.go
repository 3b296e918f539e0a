package rag

import "errors"

// Failure kinds surfaced by Pipeline.Ask. A refusal is not an error.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrRetrievalFailure  = errors.New("retrieval failure")
	ErrGenerationFailure = errors.New("generation failure")
	ErrConfiguration     = errors.New("configuration error")
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

const (
	RefusalMessage  = "I don't have enough verified information in my sources to answer that question. Please consult a qualified solicitor or rephrase your question."
	FallbackMessage = "I could not produce an answer from the sources found. Please review the cited sources below."
	ApologyMessage  = "Sorry, I could not generate an answer right now. The most relevant sources are listed below."
)
