package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/rfpgest/internal/chunker"
	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/loader"
	"github.com/dgallion1/rfpgest/internal/vectorindex"
)

// indexBatchSize caps chunks per Upsert call and thus per embedding request.
const indexBatchSize = 32

// Worker processes a single document job.
type Worker struct {
	index    vectorindex.Index
	hashes   *HashRegistry
	log      *slog.Logger
	chunkCfg chunker.Config

	maxConcurrentIndex int
	pdfFallback        bool
}

func NewWorker(index vectorindex.Index, hashes *HashRegistry, log *slog.Logger, chunkCfg chunker.Config, maxIndex int, pdfFallback bool) *Worker {
	return &Worker{
		index:              index,
		hashes:             hashes,
		log:                log,
		chunkCfg:           chunkCfg,
		maxConcurrentIndex: maxIndex,
		pdfFallback:        pdfFallback,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "document_id", job.DocID, "project", job.ProjectName)

	// Phase 1: Load
	job.SetStatus(StatusLoading, "loading")
	ldr, err := loader.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "loading")
		return
	}
	if pdf, ok := ldr.(*loader.PDFLoader); ok {
		pdf.FallbackPdftotext = w.pdfFallback
	}

	doc, err := ldr.Load(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("load failed", "error", err)
		job.AddError(fmt.Sprintf("load: %s", err))
		job.SetStatus(StatusFailed, "loading")
		return
	}
	doc.ID = job.DocID
	doc.Metadata.ProjectName = job.ProjectName
	doc.Metadata.UploadedAt = job.CreatedAt

	// Compute content hash from the extracted text.
	job.ContentHash = ContentHashHex([]byte(doc.RawContent))

	// Phase 1.5: Dedup check
	if !job.Force {
		if prevID, ok := w.hashes.Lookup(job.ProjectName, job.ContentHash); ok {
			log.Info("duplicate document, skipping", "existing_document_id", prevID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	cfg := w.chunkCfg
	if job.ChunkSize > 0 {
		cfg.ChunkSize = job.ChunkSize
	}
	if job.ChunkOverlap > 0 {
		cfg.ChunkOverlap = job.ChunkOverlap
	}
	chunks := chunker.ChunkDocument(doc, cfg)
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 3: Index chunk batches with bounded concurrency.
	job.SetStatus(StatusIndexing, "indexing")
	type batchResult struct {
		count int
		err   error
		start int
	}
	batches := (len(chunks) + indexBatchSize - 1) / indexBatchSize
	results := make(chan batchResult, batches)
	sem := make(chan struct{}, w.maxConcurrentIndex)

	for start := 0; start < len(chunks); start += indexBatchSize {
		end := min(start+indexBatchSize, len(chunks))
		sem <- struct{}{}
		go func(start int, batch []document.Chunk) {
			defer func() { <-sem }()
			var lastErr error
			for attempt := range MaxRetries {
				lastErr = w.index.Upsert(ctx, batch)
				if lastErr == nil || !IsRetryable(lastErr) {
					break
				}
				log.Warn("retryable index error", "batch_start", start, "attempt", attempt, "error", lastErr)
				select {
				case <-time.After(Backoff(attempt)):
				case <-ctx.Done():
					results <- batchResult{err: ctx.Err(), start: start}
					return
				}
			}
			results <- batchResult{count: len(batch), err: lastErr, start: start}
		}(start, chunks[start:end])
	}

	// Collect indexing results.
	indexed := 0
	hadErrors := false
	for range batches {
		r := <-results
		if r.err != nil {
			log.Error("index batch failed", "batch_start", r.start, "error", r.err)
			job.AddError(fmt.Sprintf("index batch at %d: %s", r.start, r.err))
			hadErrors = true
			continue
		}
		indexed += r.count
		job.AddChunksIndexed(r.count)
	}

	log.Info("indexing complete", "indexed", indexed, "total", len(chunks))

	if hadErrors && indexed > 0 {
		job.SetStatus(StatusPartial, "done")
	} else if hadErrors {
		job.SetStatus(StatusFailed, "indexing")
	} else {
		w.hashes.Record(job.ProjectName, job.ContentHash, job.DocID)
		job.SetStatus(StatusCompleted, "done")
	}
}
