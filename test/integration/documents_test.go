package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/google/uuid"
)

func TestIngestDocument(t *testing.T) {
	reqBody := map[string]any{
		"name":       "faq",
		"text":       "Auskunft answers questions using retrieval augmented generation.",
		"collection": "ingestdocs",
		"metadata":   map[string]string{"team": "docs"},
	}

	resp := postJSON(t, testEnv.BaseURL()+"/v1/documents", reqBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var doc api.Document
	decodeJSON(t, resp, &doc)

	if doc.Object != "document" {
		t.Errorf("object = %q, want %q", doc.Object, "document")
	}
	if err := uuid.Validate(doc.ID); err != nil {
		t.Errorf("document ID %q is not a UUID: %v", doc.ID, err)
	}
	if doc.Name != "faq" {
		t.Errorf("name = %q, want %q", doc.Name, "faq")
	}
	if doc.ChunkCount < 1 {
		t.Errorf("chunk_count = %d, want at least 1", doc.ChunkCount)
	}
	if doc.Enriched {
		t.Error("enriched = true, but no enrichment model is configured")
	}
	if doc.Metadata["team"] != "docs" {
		t.Errorf("metadata = %v, want team=docs", doc.Metadata)
	}
}

func TestIngestLongDocumentChunks(t *testing.T) {
	// Long enough to exceed the default chunk size several times over.
	text := strings.Repeat("Every paragraph explains another operational detail. ", 120)
	reqBody := map[string]any{
		"name":       "manual",
		"text":       text,
		"collection": "ingestdocs",
	}

	resp := postJSON(t, testEnv.BaseURL()+"/v1/documents", reqBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var doc api.Document
	decodeJSON(t, resp, &doc)
	if doc.ChunkCount < 2 {
		t.Errorf("chunk_count = %d, want multiple chunks for %d bytes", doc.ChunkCount, len(text))
	}
}

func TestDocumentLifecycle(t *testing.T) {
	reqBody := map[string]any{
		"name":       "lifecycle",
		"text":       "This document exists only to be deleted.",
		"collection": "lifecycledocs",
	}
	resp := postJSON(t, testEnv.BaseURL()+"/v1/documents", reqBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest: expected 201, got %d", resp.StatusCode)
	}
	var doc api.Document
	decodeJSON(t, resp, &doc)

	// Retrieve.
	resp = getURL(t, testEnv.BaseURL()+"/v1/documents/"+doc.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var fetched api.Document
	decodeJSON(t, resp, &fetched)
	if fetched.ID != doc.ID {
		t.Errorf("fetched ID = %q, want %q", fetched.ID, doc.ID)
	}

	// List, scoped to the collection.
	resp = getURL(t, testEnv.BaseURL()+"/v1/documents?collection=lifecycledocs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list api.DocumentList
	decodeJSON(t, resp, &list)
	if len(list.Data) != 1 || list.Data[0].ID != doc.ID {
		t.Errorf("list = %d documents, want exactly the ingested one", len(list.Data))
	}

	// Delete, then retrieval returns 404 and search finds nothing.
	resp = deleteURL(t, testEnv.BaseURL()+"/v1/documents/"+doc.ID)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getURL(t, testEnv.BaseURL()+"/v1/documents/"+doc.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	searchReq := map[string]any{
		"query":      "This document exists only to be deleted.",
		"collection": "lifecycledocs",
	}
	resp = postJSON(t, testEnv.BaseURL()+"/v1/search", searchReq)
	var sr api.SearchResponse
	decodeJSON(t, resp, &sr)
	if len(sr.Results) != 0 {
		t.Errorf("search after delete returned %d results, want 0", len(sr.Results))
	}
}

func TestSearchRanksExactMatchFirst(t *testing.T) {
	docs := []map[string]any{
		{"name": "alpha", "text": "Alpha systems handle identity and login.", "collection": "searchdocs"},
		{"name": "beta", "text": "Beta systems handle billing and invoices.", "collection": "searchdocs"},
	}
	for _, d := range docs {
		resp := postJSON(t, testEnv.BaseURL()+"/v1/documents", d)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("ingest %s: expected 201, got %d", d["name"], resp.StatusCode)
		}
		resp.Body.Close()
	}

	// The fake backend embeds identical texts identically, so querying
	// with a chunk's exact text must rank that document first.
	searchReq := map[string]any{
		"query":      "Alpha systems handle identity and login.",
		"collection": "searchdocs",
	}
	resp := postJSON(t, testEnv.BaseURL()+"/v1/search", searchReq)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var sr api.SearchResponse
	decodeJSON(t, resp, &sr)

	if sr.Object != "list" {
		t.Errorf("object = %q, want %q", sr.Object, "list")
	}
	if len(sr.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(sr.Results))
	}
	if sr.Results[0].DocumentName != "alpha" {
		t.Errorf("top result = %q, want %q", sr.Results[0].DocumentName, "alpha")
	}
	if sr.Results[0].Score < 0.99 {
		t.Errorf("exact match score = %f, want ~1.0", sr.Results[0].Score)
	}
	if sr.Results[1].Score > sr.Results[0].Score {
		t.Error("results are not ordered by descending score")
	}
}
