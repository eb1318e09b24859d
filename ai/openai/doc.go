// Package openai implements the ai interfaces against any
// OpenAI-compatible API server (Ollama, LocalAI, vLLM, OpenAI itself).
//
// Both services go through langchaingo, so wire details like batching and
// retry semantics follow that library's behavior.
package openai
