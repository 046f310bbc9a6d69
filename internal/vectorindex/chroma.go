package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/llm"
)

// ChromaIndex stores chunks in a Chroma collection over its HTTP API.
// Embeddings are computed client-side, so the server never needs its own
// embedding function. Distances are Chroma's L2 values.
type ChromaIndex struct {
	baseURL    string
	collection string
	embedder   llm.Embedder
	httpClient *http.Client

	mu           sync.Mutex
	collectionID string
}

func NewChromaIndex(baseURL, collection string, embedder llm.Embedder) *ChromaIndex {
	return &ChromaIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ensureCollection resolves the collection ID, creating the collection on
// first use.
func (x *ChromaIndex) ensureCollection(ctx context.Context) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.collectionID != "" {
		return x.collectionID, nil
	}

	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]any{"name": x.collection, "get_or_create": true}
	if err := x.post(ctx, "/api/v1/collections", body, &resp); err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", x.collection, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("ensure collection %s: empty id in response", x.collection)
	}
	x.collectionID = resp.ID
	return resp.ID, nil
}

// Upsert embeds and stores chunks, overwriting entries with the same ID.
func (x *ChromaIndex) Upsert(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collID, err := x.ensureCollection(ctx)
	if err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		metadatas[i] = flattenChunk(c)
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": vectors,
		"metadatas":  metadatas,
		"documents":  texts,
	}
	if err := x.post(ctx, "/api/v1/collections/"+collID+"/upsert", body, nil); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// Query embeds text and returns the k nearest chunks, optionally filtered
// by exact metadata match.
func (x *ChromaIndex) Query(ctx context.Context, text string, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	collID, err := x.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	vectors, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}

	body := map[string]any{
		"query_embeddings": vectors,
		"n_results":        k,
		"include":          []string{"metadatas", "documents", "distances"},
	}
	if len(filter) > 0 {
		body["where"] = whereClause(filter)
	}

	var resp struct {
		IDs       [][]string         `json:"ids"`
		Distances [][]float64        `json:"distances"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Documents [][]string         `json:"documents"`
	}
	if err := x.post(ctx, "/api/v1/collections/"+collID+"/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		var content string
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			content = resp.Documents[0][i]
		}
		var meta map[string]any
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			meta = resp.Metadatas[0][i]
		}
		var distance float64
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			distance = resp.Distances[0][i]
		}
		results = append(results, Result{
			Chunk:    unflattenChunk(id, content, meta),
			Distance: distance,
		})
	}
	return results, nil
}

// whereClause builds a Chroma where filter. Chroma allows one field per
// clause, so multiple keys combine under $and.
func whereClause(filter map[string]string) map[string]any {
	if len(filter) == 1 {
		for k, v := range filter {
			return map[string]any{k: v}
		}
	}
	clauses := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		clauses = append(clauses, map[string]any{k: v})
	}
	return map[string]any{"$and": clauses}
}

// DeleteByDocument removes every chunk belonging to a document.
func (x *ChromaIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	collID, err := x.ensureCollection(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{
		"where": map[string]any{"document_id": documentID},
	}
	if err := x.post(ctx, "/api/v1/collections/"+collID+"/delete", body, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

// Stats reports the collection size.
func (x *ChromaIndex) Stats(ctx context.Context) (Stats, error) {
	collID, err := x.ensureCollection(ctx)
	if err != nil {
		return Stats{}, err
	}
	var count int
	if err := x.get(ctx, "/api/v1/collections/"+collID+"/count", &count); err != nil {
		return Stats{}, fmt.Errorf("collection count: %w", err)
	}
	return Stats{
		Collection: x.collection,
		Count:      count,
		Location:   x.baseURL,
	}, nil
}

func (x *ChromaIndex) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (x *ChromaIndex) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (x *ChromaIndex) Close() {
	x.httpClient.CloseIdleConnections()
}
