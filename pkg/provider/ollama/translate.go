package ollama

import (
	"encoding/base64"

	"github.com/antwort-dev/auskunft/pkg/provider"
)

// translateRequest converts a provider.Request into Ollama's generate
// request shape. The stream flag is set by the caller because the same
// translation serves both Generate and Stream.
func translateRequest(req *provider.Request, stream bool) *generateRequest {
	gr := &generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: stream,
		Format: req.Format,
		Think:  req.Think,
	}

	if len(req.Images) > 0 {
		gr.Images = make([]string, len(req.Images))
		for i, img := range req.Images {
			gr.Images[i] = base64.StdEncoding.EncodeToString(img)
		}
	}

	gr.Options = translateOptions(req.Options)
	return gr
}

// translateOptions maps generation options to Ollama's option names.
// Returns nil when no option is set so the field is omitted entirely.
func translateOptions(o provider.Options) *generateOptions {
	if o.Temperature == nil && o.TopP == nil && o.TopK == nil && o.MaxTokens == nil && len(o.Stop) == 0 {
		return nil
	}
	return &generateOptions{
		Temperature: o.Temperature,
		TopP:        o.TopP,
		TopK:        o.TopK,
		NumPredict:  o.MaxTokens,
		Stop:        o.Stop,
	}
}

// translateResponse converts a final generate response into the
// provider's normalized response shape.
func translateResponse(gr *generateResponse) *provider.Response {
	return &provider.Response{
		Model:        gr.Model,
		Text:         gr.Response,
		Done:         gr.Done,
		FinishReason: finishReason(gr.DoneReason),
		Usage: provider.Usage{
			PromptTokens:     gr.PromptEvalCount,
			CompletionTokens: gr.EvalCount,
		},
	}
}

// finishReason normalizes Ollama's done_reason. Older servers omit it
// on successful completion.
func finishReason(reason string) string {
	if reason == "" {
		return "stop"
	}
	return reason
}
