// Package provider defines the protocol-agnostic interface for text
// generation backends. Each adapter implementation (ollama, watsonx)
// handles its own backend protocol internally and normalizes requests,
// responses, stream chunks, and errors to the common types in this
// package, keeping vendor wire formats invisible to the engine.
//
// Exactly one backend is active per process; the factory subpackage
// selects and constructs it once from configuration.
package provider
