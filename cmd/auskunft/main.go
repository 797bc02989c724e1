// Auskunft is a retrieval-augmented question answering service with a
// dual LLM backend: local Ollama for development and IBM watsonx.ai
// for cloud deployments.
//
// Usage:
//
//	# Start the HTTP API with default configuration
//	auskunft api
//
//	# Start with a custom configuration file
//	auskunft api --config /etc/auskunft/config.yaml
//
//	# Serve ask/search tools over MCP on stdio
//	auskunft mcp
//
//	# Show version information
//	auskunft version
//
// The generation backend is selected by configuration (llm.backend or
// the LLM_BACKEND environment variable) and fixed for the lifetime of
// the process.
package main

func main() {
	Execute()
}
