package retrieval

import "errors"

var (
	// ErrIndexRequired indicates the engine was built without a vector index.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired indicates the engine was built without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrExtractorRequired indicates the engine was built without an extractor.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrChunkerRequired indicates the engine was built without a chunker.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrGeneratorRequired indicates an operation that needs a text
	// generation service on an engine built without one.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrNoPassages indicates a question matched nothing in the index,
	// so there is no source material to answer from.
	ErrNoPassages = errors.New("no matching passages")

	// ErrEngineClosed is returned by operations on a released engine.
	ErrEngineClosed = errors.New("engine is closed")
)
