package watsonx

// Wire types for the watsonx.ai ML API. Field names follow the JSON
// shapes documented at https://cloud.ibm.com/apidocs/watsonx-ai.

// generationRequest is the request body for /ml/v1/text/generation and
// /ml/v1/text/generation_stream.
type generationRequest struct {
	ModelID    string                `json:"model_id"`
	Input      string                `json:"input"`
	Parameters *generationParameters `json:"parameters,omitempty"`
	ProjectID  string                `json:"project_id"`
}

// generationParameters maps sampling options to watsonx parameter names.
type generationParameters struct {
	MaxNewTokens  *int     `json:"max_new_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// generationResponse is the response body from text generation. In SSE
// streaming each data payload decodes into the same shape, with the
// delta in results[0].generated_text and cumulative token counts.
type generationResponse struct {
	ModelID   string             `json:"model_id"`
	CreatedAt string             `json:"created_at"`
	Results   []generationResult `json:"results"`
}

type generationResult struct {
	GeneratedText       string `json:"generated_text"`
	GeneratedTokenCount int    `json:"generated_token_count"`
	InputTokenCount     int    `json:"input_token_count"`

	// StopReason is "not_finished" on intermediate stream events and a
	// terminal reason (eos_token, max_tokens, stop_sequence) otherwise.
	StopReason string `json:"stop_reason"`
}

// embeddingsRequest is the request body for /ml/v1/text/embeddings.
type embeddingsRequest struct {
	ModelID   string   `json:"model_id"`
	Inputs    []string `json:"inputs"`
	ProjectID string   `json:"project_id"`
}

type embeddingsResponse struct {
	ModelID string            `json:"model_id"`
	Results []embeddingResult `json:"results"`
}

type embeddingResult struct {
	Embedding []float32 `json:"embedding"`
}

// modelSpecsResponse is the response body from /ml/v1/foundation_model_specs.
type modelSpecsResponse struct {
	Resources []modelSpec `json:"resources"`
}

type modelSpec struct {
	ModelID  string `json:"model_id"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
}

// errorResponse is the ML API error body.
type errorResponse struct {
	Errors     []errorDetail `json:"errors"`
	Trace      string        `json:"trace"`
	StatusCode int           `json:"status_code"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// iamTokenResponse is the IAM token exchange response.
type iamTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// iamErrorResponse is the IAM error body, e.g. errorCode BXNIM0415E for
// an unknown API key.
type iamErrorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
