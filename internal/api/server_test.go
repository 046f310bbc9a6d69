package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/rfpgest/internal/analysis"
	"github.com/dgallion1/rfpgest/internal/config"
	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/pipeline"
	"github.com/dgallion1/rfpgest/internal/retrieval"
	"github.com/dgallion1/rfpgest/internal/vectorindex"
	"github.com/dgallion1/rfpgest/internal/workflow"
)

const testAPIKey = "test-key"

// constEmbedder gives every text the same vector; enough for the memory
// index to accept upserts and queries.
type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

type stubRetriever struct{ chunks []retrieval.RetrievedChunk }

func (s *stubRetriever) Retrieve(context.Context, string, retrieval.Options) ([]retrieval.RetrievedChunk, error) {
	return s.chunks, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, req analysis.Request, _ []retrieval.RetrievedChunk) (*analysis.Result, error) {
	return &analysis.Result{
		Requirements: []analysis.Requirement{{ID: "REQ-001", Title: "Encrypt data at rest"}},
		Reasoning:    "stub analysis",
		Confidence:   80,
		Query:        req.Query,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		APIKey:         testAPIKey,
		MaxUploadBytes: 1 << 20,
		MaxQueueSize:   4,
		JobTTL:         time.Hour,
	}
}

// newTestServer wires a server around a memory index and stubbed workflow.
// The orchestrator is never started, so submitted jobs stay queued.
func newTestServer(cfg config.Config) (*Server, *pipeline.Orchestrator, vectorindex.Index) {
	log := discardLogger()
	index := vectorindex.NewMemoryIndex("test", constEmbedder{})
	orch := pipeline.NewOrchestrator(cfg, index, log)
	wf := workflow.New(&stubRetriever{}, stubAnalyzer{}, log)
	return NewServer(orch, wf, index, nil, log, cfg), orch, index
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(s *Server, method, path string, body io.Reader, contentType string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	rec := doRequest(s, http.MethodGet, "/health", nil, "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestAuthGuardsAPIRoutes(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	rec := doRequest(s, http.MethodGet, "/api/documents/stats", nil, "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	wrongRec := httptest.NewRecorder()
	s.ServeHTTP(wrongRec, req)
	if wrongRec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", wrongRec.Code)
	}

	okRec := doRequest(s, http.MethodGet, "/api/documents/stats", nil, "", true)
	if okRec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", okRec.Code)
	}
}

func TestIngestRequiresProjectName(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	body, ct := multipartBody(t, nil, "file", "doc.txt", []byte("hello"))
	rec := doRequest(s, http.MethodPost, "/api/ingest", body, ct, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "project_name") {
		t.Fatalf("expected project_name error, got %s", rec.Body.String())
	}
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	body, ct := multipartBody(t, map[string]string{"project_name": "alpha"}, "file", "doc.exe", []byte("MZ"))
	rec := doRequest(s, http.MethodPost, "/api/ingest", body, ct, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported file type") {
		t.Fatalf("expected unsupported type error, got %s", rec.Body.String())
	}
}

func TestIngestAcceptsAndTracksJob(t *testing.T) {
	s, orch, _ := newTestServer(testConfig())

	fields := map[string]string{
		"project_name": "alpha",
		"chunk_size":   "400",
		"overlap":      "80",
	}
	body, ct := multipartBody(t, fields, "file", "rfp.txt", []byte("1. Scope\nThe vendor shall deliver."))
	rec := doRequest(s, http.MethodPost, "/api/ingest", body, ct, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	jobID, _ := resp["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected job_id in response")
	}
	docID, _ := resp["document_id"].(string)
	if len(docID) != 16 {
		t.Fatalf("expected 16-char content-hash document id, got %q", docID)
	}
	if poll, _ := resp["poll_url"].(string); poll != "/api/ingest/"+jobID+"/status" {
		t.Fatalf("unexpected poll_url: %v", resp["poll_url"])
	}

	job := orch.GetJob(jobID)
	if job == nil {
		t.Fatal("job not registered with orchestrator")
	}
	if job.ChunkSize != 400 || job.ChunkOverlap != 80 {
		t.Fatalf("chunk overrides not applied: %d/%d", job.ChunkSize, job.ChunkOverlap)
	}

	statusRec := doRequest(s, http.MethodGet, "/api/ingest/"+jobID+"/status", nil, "", true)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", statusRec.Code)
	}
	var snap pipeline.JobSnapshot
	if err := json.NewDecoder(statusRec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != pipeline.StatusQueued {
		t.Fatalf("expected queued job, got %s", snap.Status)
	}
	if snap.ProjectName != "alpha" || snap.Filename != "rfp.txt" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestIngestStatusNotFound(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	rec := doRequest(s, http.MethodGet, "/api/ingest/no-such-job/status", nil, "", true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestIngestQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	s, _, _ := newTestServer(cfg)

	first, ct1 := multipartBody(t, map[string]string{"project_name": "p"}, "file", "a.txt", []byte("alpha"))
	if rec := doRequest(s, http.MethodPost, "/api/ingest", first, ct1, true); rec.Code != http.StatusAccepted {
		t.Fatalf("first ingest: expected 202, got %d", rec.Code)
	}

	second, ct2 := multipartBody(t, map[string]string{"project_name": "p"}, "file", "b.txt", []byte("beta"))
	rec := doRequest(s, http.MethodPost, "/api/ingest", second, ct2, true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when queue is full, got %d", rec.Code)
	}
}

func TestBatchIngestAccumulatesPerFileErrors(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("project_name", "alpha"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	good, err := mw.CreateFormFile("files", "good.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	good.Write([]byte("The system shall respond."))
	bad, err := mw.CreateFormFile("files", "bad.exe")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	bad.Write([]byte("MZ"))
	mw.Close()

	rec := doRequest(s, http.MethodPost, "/api/ingest/batch", &buf, mw.FormDataContentType(), true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Jobs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Jobs))
	}
	var queued, failed int
	for _, entry := range resp.Jobs {
		if _, ok := entry["job_id"]; ok {
			queued++
		}
		if _, ok := entry["error"]; ok {
			failed++
		}
	}
	if queued != 1 || failed != 1 {
		t.Fatalf("expected 1 queued and 1 error, got %d/%d", queued, failed)
	}
}

func TestAnalyzeValidatesRequest(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	rec := doRequest(s, http.MethodPost, "/api/analyze", strings.NewReader("{not json"), "application/json", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/api/analyze", strings.NewReader(`{"query":"  "}`), "application/json", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank query, got %d", rec.Code)
	}
}

func TestAnalyzeReturnsWorkflowResult(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	body := `{"query":"extract all requirements","project_name":"alpha"}`
	rec := doRequest(s, http.MethodPost, "/api/analyze", strings.NewReader(body), "application/json", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result analysis.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Requirements) != 1 || result.Requirements[0].ID != "REQ-001" {
		t.Fatalf("unexpected requirements: %+v", result.Requirements)
	}
	if result.Query != "extract all requirements" {
		t.Fatalf("expected query echoed, got %q", result.Query)
	}
	if result.Confidence != 80 {
		t.Fatalf("expected confidence 80, got %f", result.Confidence)
	}
}

func TestDocumentStats(t *testing.T) {
	s, _, index := newTestServer(testConfig())

	chunks := []document.Chunk{
		{ID: "d1_chunk_0", DocumentID: "d1", Content: "first"},
		{ID: "d1_chunk_1", DocumentID: "d1", Content: "second"},
	}
	if err := index.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec := doRequest(s, http.MethodGet, "/api/documents/stats", nil, "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats vectorindex.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Collection != "test" || stats.Count != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDeleteDocumentClearsIndexAndHash(t *testing.T) {
	s, orch, index := newTestServer(testConfig())

	if err := index.Upsert(context.Background(), []document.Chunk{
		{ID: "d1_chunk_0", DocumentID: "d1", Content: "body"},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	orch.Hashes().Record("alpha", "somehash", "d1")

	rec := doRequest(s, http.MethodDelete, "/api/documents/d1", nil, "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stats, err := index.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 0 {
		t.Fatalf("expected empty index after delete, got %d", stats.Count)
	}
	if _, ok := orch.Hashes().Lookup("alpha", "somehash"); ok {
		t.Fatal("expected content hash released after delete")
	}
}

func TestLLMStatsUnavailableWithoutClient(t *testing.T) {
	s, _, _ := newTestServer(testConfig())

	rec := doRequest(s, http.MethodGet, "/api/stats/llm", nil, "", true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
