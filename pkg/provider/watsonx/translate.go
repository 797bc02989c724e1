package watsonx

import (
	"github.com/antwort-dev/auskunft/pkg/provider"
)

// translateRequest converts a provider.Request into the watsonx text
// generation request shape. The generation endpoint takes a single
// input string, so any system prompt is prepended to the prompt text.
func translateRequest(req *provider.Request, projectID string) *generationRequest {
	input := req.Prompt
	if req.System != "" {
		input = req.System + "\n\n" + req.Prompt
	}

	return &generationRequest{
		ModelID:    req.Model,
		Input:      input,
		Parameters: translateParameters(req.Options),
		ProjectID:  projectID,
	}
}

// translateParameters maps generation options to watsonx parameter
// names. Returns nil when no option is set so the field is omitted.
func translateParameters(o provider.Options) *generationParameters {
	if o.Temperature == nil && o.TopP == nil && o.TopK == nil && o.MaxTokens == nil && len(o.Stop) == 0 {
		return nil
	}
	return &generationParameters{
		MaxNewTokens:  o.MaxTokens,
		Temperature:   o.Temperature,
		TopP:          o.TopP,
		TopK:          o.TopK,
		StopSequences: o.Stop,
	}
}

// translateResponse converts a generation response into the provider's
// normalized shape. The generated text lives in results[0].
func translateResponse(gr *generationResponse) *provider.Response {
	resp := &provider.Response{
		Model: gr.ModelID,
		Done:  true,
	}
	if len(gr.Results) > 0 {
		result := gr.Results[0]
		resp.Text = result.GeneratedText
		resp.FinishReason = mapStopReason(result.StopReason)
		resp.Usage = provider.Usage{
			PromptTokens:     result.InputTokenCount,
			CompletionTokens: result.GeneratedTokenCount,
		}
	}
	return resp
}

// mapStopReason normalizes watsonx stop reasons to the shared finish
// reason vocabulary.
func mapStopReason(reason string) string {
	switch reason {
	case "eos_token", "stop_sequence", "":
		return "stop"
	case "max_tokens", "token_limit":
		return "length"
	default:
		return reason
	}
}
