package watsonx

import "time"

const (
	// DefaultURL is the us-south regional endpoint.
	DefaultURL = "https://us-south.ml.cloud.ibm.com"

	// DefaultIAMEndpoint is the IBM Cloud token exchange endpoint.
	DefaultIAMEndpoint = "https://iam.cloud.ibm.com/identity/token"

	// apiVersion is the ML API version date sent with every request.
	apiVersion = "2023-05-29"
)

// Config holds configuration for the watsonx provider adapter.
type Config struct {
	// APIKey is the IBM Cloud API key. Required.
	APIKey string

	// ProjectID scopes all requests to a watsonx project. Required.
	ProjectID string

	// URL is the regional service endpoint. Defaults to us-south.
	URL string

	// IAMEndpoint is the token exchange URL. Overridable for tests.
	IAMEndpoint string

	// Timeout for unary HTTP requests. Streaming requests are governed
	// by context cancellation instead. Defaults to 120s.
	Timeout time.Duration

	// EmbeddingModel is the model used for embedding requests that do
	// not name one. Embeddings are reported as unsupported when empty.
	EmbeddingModel string
}
