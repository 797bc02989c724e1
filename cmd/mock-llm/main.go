// Command mock-llm runs a deterministic fake of both generation
// backends for conformance testing. It speaks Ollama's native API
// (/api/generate, /api/embeddings, /api/tags) and the watsonx.ai ML
// API (/ml/v1/text/generation, generation_stream, embeddings,
// foundation_model_specs) including the IAM token exchange, so the
// same process can stand in for either backend.
//
// Responses are derived from request content only: the same prompt
// always yields the same text, token counts, and embedding vector.
//
// Configuration:
//
//	MOCK_PORT    - Listen port (default: 9090)
//	MOCK_API_KEY - Accepted IAM API key (default: "mock-api-key")
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

const mockAccessToken = "mock-iam-access-token"

var apiKey = "mock-api-key"

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	if k := os.Getenv("MOCK_API_KEY"); k != "" {
		apiKey = k
	}

	mux := http.NewServeMux()

	// Ollama surface.
	mux.HandleFunc("POST /api/generate", handleOllamaGenerate)
	mux.HandleFunc("POST /api/embeddings", handleOllamaEmbeddings)
	mux.HandleFunc("GET /api/tags", handleOllamaTags)

	// watsonx surface.
	mux.HandleFunc("POST /identity/token", handleIAMToken)
	mux.HandleFunc("POST /ml/v1/text/generation", requireBearer(handleWatsonxGenerate))
	mux.HandleFunc("POST /ml/v1/text/generation_stream", requireBearer(handleWatsonxStream))
	mux.HandleFunc("POST /ml/v1/text/embeddings", requireBearer(handleWatsonxEmbeddings))
	mux.HandleFunc("GET /ml/v1/foundation_model_specs", requireBearer(handleWatsonxModels))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock llm starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock llm failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock llm shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Deterministic content ---

// replyFor derives the generated text from the prompt. Prompts that
// mention "count" get a counting answer so streaming tests can assert
// multiple deltas; everything else gets a reply that quotes back a
// fragment of the prompt.
func replyFor(prompt string) string {
	lower := strings.ToLower(prompt)
	if strings.Contains(lower, "count from 1 to 5") {
		return "1, 2, 3, 4, 5"
	}
	frag := prompt
	if len(frag) > 40 {
		frag = frag[:40]
	}
	return fmt.Sprintf("Based on the provided context: %s", strings.TrimSpace(frag))
}

// tokenize splits the reply into word-level deltas for streaming.
func tokenize(text string) []string {
	words := strings.Split(text, " ")
	tokens := make([]string, 0, len(words)*2)
	for i, w := range words {
		if i > 0 {
			tokens = append(tokens, " ")
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// embeddingFor produces an 8-dimensional unit vector derived from the
// text. Identical inputs embed identically; different inputs almost
// always differ, which is enough for retrieval ordering in tests.
func embeddingFor(text string) []float32 {
	const dims = 8
	vec := make([]float32, dims)
	var norm float64
	for i := 0; i < dims; i++ {
		h := fnv.New32a()
		fmt.Fprintf(h, "%d:%s", i, text)
		v := float64(h.Sum32()%1000)/500.0 - 1.0
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// modelKnown reports whether the mock recognizes the model. Names
// containing "missing" trigger the backend's not-found path.
func modelKnown(model string) bool {
	return !strings.Contains(model, "missing")
}

func countTokens(text string) int {
	return len(strings.Fields(text))
}

// --- Ollama handlers ---

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

func handleOllamaGenerate(w http.ResponseWriter, r *http.Request) {
	var req ollamaGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOllamaError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !modelKnown(req.Model) {
		writeOllamaError(w, http.StatusNotFound, fmt.Sprintf("model %q not found, try pulling it first", req.Model))
		return
	}

	text := replyFor(req.Prompt)
	now := time.Now().UTC().Format(time.RFC3339)

	if !req.Stream {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:           req.Model,
			CreatedAt:       now,
			Response:        text,
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: countTokens(req.Prompt),
			EvalCount:       countTokens(text),
		})
		return
	}

	// NDJSON stream: one object per line, final line carries counts.
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")

	enc := json.NewEncoder(w)
	for _, token := range tokenize(text) {
		enc.Encode(ollamaGenerateResponse{
			Model:     req.Model,
			CreatedAt: now,
			Response:  token,
		})
		flusher.Flush()
	}
	enc.Encode(ollamaGenerateResponse{
		Model:           req.Model,
		CreatedAt:       now,
		Done:            true,
		DoneReason:      "stop",
		PromptEvalCount: countTokens(req.Prompt),
		EvalCount:       countTokens(text),
	})
	flusher.Flush()
}

func handleOllamaEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOllamaError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !modelKnown(req.Model) {
		writeOllamaError(w, http.StatusNotFound, fmt.Sprintf("model %q not found, try pulling it first", req.Model))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"embedding": embeddingFor(req.Prompt),
	})
}

func handleOllamaTags(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"models": []map[string]any{
			{"name": "llama3.1:8b", "modified_at": "2025-01-01T00:00:00Z", "size": 4661224676},
			{"name": "nomic-embed-text", "modified_at": "2025-01-01T00:00:00Z", "size": 274302450},
		},
	})
}

func writeOllamaError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// --- IAM token exchange ---

func handleIAMToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeIAMError(w, http.StatusBadRequest, "BXNIM0109E", "Property missing or malformed.")
		return
	}
	if r.PostFormValue("apikey") != apiKey {
		writeIAMError(w, http.StatusBadRequest, "BXNIM0415E", "Provided API key could not be found.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": mockAccessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func writeIAMError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"errorCode":    code,
		"errorMessage": msg,
	})
}

// requireBearer rejects ML API calls without the token the IAM
// endpoint issues, mirroring the real service's 401 behavior.
func requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+mockAccessToken {
			writeWatsonxError(w, http.StatusUnauthorized, "authentication_token_not_valid", "Failed to authenticate the request due to invalid token")
			return
		}
		next(w, r)
	}
}

// --- watsonx handlers ---

type watsonxGenerateRequest struct {
	ModelID   string `json:"model_id"`
	Input     string `json:"input"`
	ProjectID string `json:"project_id"`
}

type watsonxResult struct {
	GeneratedText       string `json:"generated_text"`
	GeneratedTokenCount int    `json:"generated_token_count"`
	InputTokenCount     int    `json:"input_token_count"`
	StopReason          string `json:"stop_reason"`
}

type watsonxGenerateResponse struct {
	ModelID   string          `json:"model_id"`
	CreatedAt string          `json:"created_at"`
	Results   []watsonxResult `json:"results"`
}

func handleWatsonxGenerate(w http.ResponseWriter, r *http.Request) {
	var req watsonxGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWatsonxError(w, http.StatusBadRequest, "invalid_request_entity", "invalid request body")
		return
	}
	if !modelKnown(req.ModelID) {
		writeWatsonxError(w, http.StatusNotFound, "model_not_supported", fmt.Sprintf("Model '%s' is not supported", req.ModelID))
		return
	}

	text := replyFor(req.Input)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(watsonxGenerateResponse{
		ModelID:   req.ModelID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Results: []watsonxResult{{
			GeneratedText:       text,
			GeneratedTokenCount: countTokens(text),
			InputTokenCount:     countTokens(req.Input),
			StopReason:          "eos_token",
		}},
	})
}

func handleWatsonxStream(w http.ResponseWriter, r *http.Request) {
	var req watsonxGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWatsonxError(w, http.StatusBadRequest, "invalid_request_entity", "invalid request body")
		return
	}
	if !modelKnown(req.ModelID) {
		writeWatsonxError(w, http.StatusNotFound, "model_not_supported", fmt.Sprintf("Model '%s' is not supported", req.ModelID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	text := replyFor(req.Input)
	now := time.Now().UTC().Format(time.RFC3339)

	writeSSE := func(result watsonxResult) {
		payload, _ := json.Marshal(watsonxGenerateResponse{
			ModelID:   req.ModelID,
			CreatedAt: now,
			Results:   []watsonxResult{result},
		})
		fmt.Fprintf(w, "id: 1\nevent: message\ndata: %s\n\n", payload)
		flusher.Flush()
	}

	for _, token := range tokenize(text) {
		writeSSE(watsonxResult{GeneratedText: token, StopReason: "not_finished"})
	}
	writeSSE(watsonxResult{
		GeneratedTokenCount: countTokens(text),
		InputTokenCount:     countTokens(req.Input),
		StopReason:          "eos_token",
	})
}

func handleWatsonxEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelID   string   `json:"model_id"`
		Inputs    []string `json:"inputs"`
		ProjectID string   `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWatsonxError(w, http.StatusBadRequest, "invalid_request_entity", "invalid request body")
		return
	}
	if !modelKnown(req.ModelID) {
		writeWatsonxError(w, http.StatusNotFound, "model_not_supported", fmt.Sprintf("Model '%s' is not supported", req.ModelID))
		return
	}

	results := make([]map[string]any, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		results = append(results, map[string]any{"embedding": embeddingFor(input)})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model_id": req.ModelID,
		"results":  results,
	})
}

func handleWatsonxModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"resources": []map[string]any{
			{"model_id": "ibm/granite-13b-chat-v2", "label": "Granite 13B Chat", "provider": "IBM"},
			{"model_id": "ibm/slate-125m-english-rtrvr", "label": "Slate 125M Retriever", "provider": "IBM"},
		},
	})
}

func writeWatsonxError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors":      []map[string]string{{"code": code, "message": msg}},
		"trace":       "mock-trace",
		"status_code": status,
	})
}
