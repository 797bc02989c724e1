package api

import (
	"fmt"
	"regexp"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxQuestionSize int
	MaxDocumentSize int
	MaxMetadataKeys int
	MaxTopK         int
	MaxImages       int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQuestionSize: 64 * 1024,        // 64KB
		MaxDocumentSize: 10 * 1024 * 1024, // 10MB
		MaxMetadataKeys: 64,
		MaxTopK:         50,
		MaxImages:       8,
	}
}

var collectionPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// ValidateCollection checks whether the given string is a usable
// collection name. Empty is allowed and means "default".
func ValidateCollection(name string) bool {
	return name == "" || collectionPattern.MatchString(name)
}

// ValidateAnswerRequest checks a CreateAnswerRequest for validity. It
// returns an *APIError describing the first validation failure, or nil if
// the request is valid.
func ValidateAnswerRequest(req *CreateAnswerRequest, cfg ValidationConfig) *APIError {
	if req.Question == "" {
		return NewInvalidRequestError("question", "question is required")
	}

	if cfg.MaxQuestionSize > 0 && len(req.Question) > cfg.MaxQuestionSize {
		return NewInvalidRequestError("question",
			fmt.Sprintf("question exceeds maximum of %d bytes", cfg.MaxQuestionSize))
	}

	if !ValidateCollection(req.Collection) {
		return NewInvalidRequestError("collection", "collection must match [a-zA-Z0-9._-]{1,64}")
	}

	if req.TopK != nil {
		if *req.TopK < 0 {
			return NewInvalidRequestError("top_k", "top_k must not be negative")
		}
		if cfg.MaxTopK > 0 && *req.TopK > cfg.MaxTopK {
			return NewInvalidRequestError("top_k",
				fmt.Sprintf("top_k exceeds maximum of %d", cfg.MaxTopK))
		}
	}

	if cfg.MaxImages > 0 && len(req.Images) > cfg.MaxImages {
		return NewInvalidRequestError("images",
			fmt.Sprintf("images exceeds maximum of %d", cfg.MaxImages))
	}

	if req.Format != "" && req.Format != "json" {
		return NewInvalidRequestError("format", "format must be \"json\" or empty")
	}

	return validateOptions(&req.Options)
}

// ValidateIngestRequest checks an IngestDocumentRequest for validity.
func ValidateIngestRequest(req *IngestDocumentRequest, cfg ValidationConfig) *APIError {
	if req.Text == "" {
		return NewInvalidRequestError("text", "text is required")
	}

	if cfg.MaxDocumentSize > 0 && len(req.Text) > cfg.MaxDocumentSize {
		return NewInvalidRequestError("text",
			fmt.Sprintf("text exceeds maximum of %d bytes", cfg.MaxDocumentSize))
	}

	if !ValidateCollection(req.Collection) {
		return NewInvalidRequestError("collection", "collection must match [a-zA-Z0-9._-]{1,64}")
	}

	if cfg.MaxMetadataKeys > 0 && len(req.Metadata) > cfg.MaxMetadataKeys {
		return NewInvalidRequestError("metadata",
			fmt.Sprintf("metadata exceeds maximum of %d keys", cfg.MaxMetadataKeys))
	}

	return nil
}

// ValidateSearchRequest checks a SearchRequest for validity.
func ValidateSearchRequest(req *SearchRequest, cfg ValidationConfig) *APIError {
	if req.Query == "" {
		return NewInvalidRequestError("query", "query is required")
	}

	if cfg.MaxQuestionSize > 0 && len(req.Query) > cfg.MaxQuestionSize {
		return NewInvalidRequestError("query",
			fmt.Sprintf("query exceeds maximum of %d bytes", cfg.MaxQuestionSize))
	}

	if !ValidateCollection(req.Collection) {
		return NewInvalidRequestError("collection", "collection must match [a-zA-Z0-9._-]{1,64}")
	}

	if req.TopK != nil {
		if *req.TopK <= 0 {
			return NewInvalidRequestError("top_k", "top_k must be positive")
		}
		if cfg.MaxTopK > 0 && *req.TopK > cfg.MaxTopK {
			return NewInvalidRequestError("top_k",
				fmt.Sprintf("top_k exceeds maximum of %d", cfg.MaxTopK))
		}
	}

	return nil
}

func validateOptions(opts *GenerationOptions) *APIError {
	if opts.Temperature != nil {
		if *opts.Temperature < 0.0 || *opts.Temperature > 2.0 {
			return NewInvalidRequestError("temperature", "temperature must be between 0.0 and 2.0")
		}
	}

	if opts.TopP != nil {
		if *opts.TopP < 0.0 || *opts.TopP > 1.0 {
			return NewInvalidRequestError("top_p", "top_p must be between 0.0 and 1.0")
		}
	}

	if opts.TopK != nil && *opts.TopK <= 0 {
		return NewInvalidRequestError("top_k", "sampling top_k must be positive")
	}

	if opts.MaxTokens != nil && *opts.MaxTokens <= 0 {
		return NewInvalidRequestError("max_tokens", "max_tokens must be positive")
	}

	return nil
}

// ResolveStore returns the effective store value, defaulting to true when nil.
func ResolveStore(req *CreateAnswerRequest) bool {
	if req.Store != nil {
		return *req.Store
	}
	return true
}
