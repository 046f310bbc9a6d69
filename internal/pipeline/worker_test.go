package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/rfpgest/internal/chunker"
	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/llm"
	"github.com/dgallion1/rfpgest/internal/vectorindex"
)

// fakeIndex records upserted batches. With failOnce set, only the first
// Upsert call returns err; otherwise err applies to every call.
type fakeIndex struct {
	mu       sync.Mutex
	batches  [][]document.Chunk
	err      error
	failOnce bool
	calls    int
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []document.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil && (!f.failOnce || f.calls == 1) {
		return f.err
	}
	f.batches = append(f.batches, chunks)
	return nil
}

func (f *fakeIndex) Query(context.Context, string, int, map[string]string) ([]vectorindex.Result, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteByDocument(context.Context, string) error { return nil }

func (f *fakeIndex) Stats(context.Context) (vectorindex.Stats, error) {
	return vectorindex.Stats{}, nil
}

func (f *fakeIndex) chunkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(idx vectorindex.Index) (*Worker, *HashRegistry) {
	hashes := NewHashRegistry()
	return NewWorker(idx, hashes, discardLogger(), chunker.DefaultConfig(), 2, false), hashes
}

const rfpText = `1. Introduction
This request for proposal describes the managed network services the agency
intends to procure during the upcoming fiscal year.

2. Requirements
The vendor shall provide monitoring around the clock. The system must support
at least 500 concurrent users and retain logs for ninety days.
`

func TestProcessCompletes(t *testing.T) {
	idx := &fakeIndex{}
	w, hashes := newTestWorker(idx)

	job := NewJob("rfp.txt", "alpha", "doc-1")
	job.SetFileData([]byte(rfpText))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalChunks == 0 {
		t.Fatal("expected chunks produced")
	}
	if snap.Progress.ChunksIndexed != snap.Progress.TotalChunks {
		t.Fatalf("expected all chunks indexed, got %d/%d",
			snap.Progress.ChunksIndexed, snap.Progress.TotalChunks)
	}
	if idx.chunkCount() != snap.Progress.TotalChunks {
		t.Fatalf("expected %d chunks upserted, got %d", snap.Progress.TotalChunks, idx.chunkCount())
	}
	for _, batch := range idx.batches {
		for _, c := range batch {
			if c.DocumentID != "doc-1" || c.ProjectName != "alpha" {
				t.Fatalf("chunk missing job identity: %+v", c)
			}
		}
	}
	if job.ContentHash == "" {
		t.Fatal("expected content hash recorded")
	}
	if _, ok := hashes.Lookup("alpha", job.ContentHash); !ok {
		t.Fatal("expected hash registered after completion")
	}
}

func TestProcessDuplicateSkipped(t *testing.T) {
	idx := &fakeIndex{}
	w, _ := newTestWorker(idx)

	first := NewJob("rfp.txt", "alpha", "doc-1")
	first.SetFileData([]byte(rfpText))
	w.Process(context.Background(), first)
	if first.Snapshot().Status != StatusCompleted {
		t.Fatalf("expected first job completed, got %s", first.Snapshot().Status)
	}
	indexed := idx.chunkCount()

	second := NewJob("rfp-copy.txt", "alpha", "doc-2")
	second.SetFileData([]byte(rfpText))
	w.Process(context.Background(), second)

	if second.Snapshot().Status != StatusDupSkipped {
		t.Fatalf("expected duplicate skipped, got %s", second.Snapshot().Status)
	}
	if idx.chunkCount() != indexed {
		t.Fatal("expected no additional chunks for duplicate")
	}
}

func TestProcessForceBypassesDedup(t *testing.T) {
	idx := &fakeIndex{}
	w, _ := newTestWorker(idx)

	first := NewJob("rfp.txt", "alpha", "doc-1")
	first.SetFileData([]byte(rfpText))
	w.Process(context.Background(), first)
	indexed := idx.chunkCount()

	second := NewJob("rfp.txt", "alpha", "doc-1")
	second.Force = true
	second.SetFileData([]byte(rfpText))
	w.Process(context.Background(), second)

	if second.Snapshot().Status != StatusCompleted {
		t.Fatalf("expected forced re-ingest to complete, got %s", second.Snapshot().Status)
	}
	if idx.chunkCount() != 2*indexed {
		t.Fatalf("expected chunks re-indexed, got %d of %d", idx.chunkCount(), 2*indexed)
	}
}

func TestHashRegistry_ForgetDocument(t *testing.T) {
	r := NewHashRegistry()
	r.Record("alpha", "hash-1", "doc-1")
	r.Record("alpha", "hash-2", "doc-2")

	r.ForgetDocument("doc-1")

	if _, ok := r.Lookup("alpha", "hash-1"); ok {
		t.Fatal("expected doc-1 hash forgotten")
	}
	if _, ok := r.Lookup("alpha", "hash-2"); !ok {
		t.Fatal("expected doc-2 hash retained")
	}
}

func TestProcessDifferentProjectNotDuplicate(t *testing.T) {
	idx := &fakeIndex{}
	w, _ := newTestWorker(idx)

	first := NewJob("rfp.txt", "alpha", "doc-1")
	first.SetFileData([]byte(rfpText))
	w.Process(context.Background(), first)

	second := NewJob("rfp.txt", "beta", "doc-2")
	second.SetFileData([]byte(rfpText))
	w.Process(context.Background(), second)

	if second.Snapshot().Status != StatusCompleted {
		t.Fatalf("expected completion in new project, got %s", second.Snapshot().Status)
	}
}

func TestProcessUnsupportedExtension(t *testing.T) {
	w, _ := newTestWorker(&fakeIndex{})

	job := NewJob("payload.exe", "alpha", "")
	job.SetFileData([]byte("MZ"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "loading" {
		t.Fatalf("expected loading failure, got %s/%s", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", snap.Progress.Errors)
	}
}

func TestProcessNoChunks(t *testing.T) {
	w, _ := newTestWorker(&fakeIndex{})

	job := NewJob("empty.txt", "alpha", "")
	job.SetFileData([]byte("   \n"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "chunking" {
		t.Fatalf("expected chunking failure, got %s/%s", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) == 0 || !strings.Contains(snap.Progress.Errors[0], "no extractable content") {
		t.Fatalf("unexpected errors: %v", snap.Progress.Errors)
	}
}

func TestProcessIndexErrorFails(t *testing.T) {
	idx := &fakeIndex{err: errors.New("index unavailable")}
	w, hashes := newTestWorker(idx)

	job := NewJob("rfp.txt", "alpha", "doc-1")
	job.SetFileData([]byte(rfpText))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "indexing" {
		t.Fatalf("expected indexing failure, got %s/%s", snap.Status, snap.Phase)
	}
	if snap.Progress.ChunksIndexed != 0 {
		t.Fatalf("expected no chunks indexed, got %d", snap.Progress.ChunksIndexed)
	}
	if len(snap.Progress.Errors) == 0 || !strings.Contains(snap.Progress.Errors[0], "index batch") {
		t.Fatalf("unexpected errors: %v", snap.Progress.Errors)
	}
	if _, ok := hashes.Lookup("alpha", job.ContentHash); ok {
		t.Fatal("expected hash not registered after failure")
	}
}

func TestProcessRetriesTransientIndexError(t *testing.T) {
	idx := &fakeIndex{
		err:      &llm.RetryableError{StatusCode: 429, Message: "rate limited"},
		failOnce: true,
	}
	w, _ := newTestWorker(idx)

	job := NewJob("rfp.txt", "alpha", "doc-1")
	job.SetFileData([]byte(rfpText))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completion after retry, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if idx.calls < 2 {
		t.Fatalf("expected a retried upsert, got %d calls", idx.calls)
	}
}

func TestProcessPartial(t *testing.T) {
	// Enough sections to span several index batches.
	var sb strings.Builder
	for i := 1; i <= 40; i++ {
		fmt.Fprintf(&sb, "%d. Section %d\n%s\n", i, i,
			strings.Repeat("The vendor shall deliver weekly progress reports to the agency. ", 20))
	}

	idx := &fakeIndex{err: errors.New("index unavailable"), failOnce: true}
	w, _ := newTestWorker(idx)

	job := NewJob("big.txt", "alpha", "doc-1")
	job.SetFileData([]byte(sb.String()))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected partial, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.ChunksIndexed == 0 || snap.Progress.ChunksIndexed >= snap.Progress.TotalChunks {
		t.Fatalf("expected partial progress, got %d/%d",
			snap.Progress.ChunksIndexed, snap.Progress.TotalChunks)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Fatalf("expected one batch error, got %v", snap.Progress.Errors)
	}
}

func TestProcessChunkOverrides(t *testing.T) {
	idx := &fakeIndex{}
	w, _ := newTestWorker(idx)

	body := strings.Repeat("The offeror must describe its staffing plan in detail. ", 30)
	content := "1. Staffing\n" + body

	small := NewJob("rfp.txt", "alpha", "doc-small")
	small.ChunkSize = 300
	small.ChunkOverlap = 50
	small.SetFileData([]byte(content))
	w.Process(context.Background(), small)

	big := NewJob("rfp.txt", "beta", "doc-big")
	big.SetFileData([]byte(content))
	w.Process(context.Background(), big)

	if small.Snapshot().Progress.TotalChunks <= big.Snapshot().Progress.TotalChunks {
		t.Fatalf("expected smaller chunk size to produce more chunks, got %d vs %d",
			small.Snapshot().Progress.TotalChunks, big.Snapshot().Progress.TotalChunks)
	}
}
