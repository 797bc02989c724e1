package provider

import (
	"github.com/antwort-dev/auskunft/pkg/api"
)

// ValidateCapabilities checks whether the given answer request is compatible
// with the backend's declared capabilities. Returns an APIError identifying
// the specific unsupported feature, or nil if the request is compatible.
//
// Streaming is never rejected here: backends without true streaming still
// satisfy Stream via the single-chunk fallback.
func ValidateCapabilities(caps Capabilities, req *api.CreateAnswerRequest) *api.APIError {
	if len(req.Images) > 0 && !caps.Vision {
		return api.NewInvalidRequestError("images",
			"the active backend does not support image inputs")
	}

	if req.Think != nil && *req.Think && !caps.Thinking {
		return api.NewInvalidRequestError("think",
			"the active backend does not support thinking output")
	}

	return nil
}
