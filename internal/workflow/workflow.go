// Package workflow drives one analysis run through an explicit state
// machine: process the query, retrieve supporting chunks, analyze, and
// shape any failure into an error result instead of a Go error.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/rfpgest/internal/analysis"
	"github.com/dgallion1/rfpgest/internal/retrieval"
)

// Retriever finds chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]retrieval.RetrievedChunk, error)
}

// Analyzer turns a request and its retrieved chunks into a structured result.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request, chunks []retrieval.RetrievedChunk) (*analysis.Result, error)
}

type state string

const (
	stateStart              state = "start"
	stateQueryProcessed     state = "query_processed"
	stateDocumentsRetrieved state = "documents_retrieved"
	stateAnalysisComplete   state = "analysis_complete"
	stateEnd                state = "end"
	stateError              state = "error"
)

type outcome string

const (
	outcomeOK    outcome = "ok"
	outcomeError outcome = "error"
)

// transitions maps (state, step outcome) to the next state. Every
// non-terminal state can fail into the error state.
var transitions = map[state]map[outcome]state{
	stateStart:              {outcomeOK: stateQueryProcessed, outcomeError: stateError},
	stateQueryProcessed:     {outcomeOK: stateDocumentsRetrieved, outcomeError: stateError},
	stateDocumentsRetrieved: {outcomeOK: stateAnalysisComplete, outcomeError: stateError},
	stateAnalysisComplete:   {outcomeOK: stateEnd, outcomeError: stateError},
}

// runState carries one request through the machine.
type runState struct {
	req    analysis.Request
	chunks []retrieval.RetrievedChunk
	result *analysis.Result
	err    error
}

type Workflow struct {
	retriever Retriever
	analyzer  Analyzer
	log       *slog.Logger
}

func New(retriever Retriever, analyzer Analyzer, log *slog.Logger) *Workflow {
	return &Workflow{retriever: retriever, analyzer: analyzer, log: log}
}

// Run executes the state machine for one request. Failures surface as an
// error-shaped result with zero confidence, never as a returned error.
func (w *Workflow) Run(ctx context.Context, req analysis.Request) *analysis.Result {
	started := time.Now()
	w.log.Info("starting analysis workflow",
		"query_len", len(req.Query), "query_type", string(req.QueryType))

	run := &runState{req: req}
	st := stateStart
	for st != stateEnd && st != stateError {
		var out outcome
		switch st {
		case stateStart:
			out = w.processQuery(run)
		case stateQueryProcessed:
			out = w.retrieveDocuments(ctx, run)
		case stateDocumentsRetrieved:
			out = w.analyzeContent(ctx, run)
		default:
			out = outcomeOK
		}
		st = transitions[st][out]
	}

	if st == stateError {
		run.result = w.handleError(run)
	}
	if run.result == nil {
		run.result = &analysis.Result{Reasoning: "No response generated", Query: run.req.Query}
	}
	run.result.ProcessingMs = time.Since(started).Milliseconds()

	w.log.Info("analysis workflow complete",
		"requirements", len(run.result.Requirements),
		"confidence", run.result.Confidence,
		"elapsed_ms", run.result.ProcessingMs)
	return run.result
}

// QuickQuery runs an analysis from a bare query string.
func (w *Workflow) QuickQuery(ctx context.Context, query, projectName string) *analysis.Result {
	return w.Run(ctx, analysis.Request{Query: query, ProjectName: projectName})
}

func (w *Workflow) processQuery(run *runState) outcome {
	query := strings.TrimSpace(run.req.Query)
	run.req.Query = query
	if query == "" {
		run.err = errors.New("query must not be empty")
		return outcomeError
	}
	if run.req.QueryType == "" || run.req.QueryType == analysis.QueryGeneral {
		run.req.QueryType = analysis.DetectQueryType(query)
	}
	w.log.Info("query processed",
		"query_type", string(run.req.QueryType), "project", run.req.ProjectName)
	return outcomeOK
}

func (w *Workflow) retrieveDocuments(ctx context.Context, run *runState) outcome {
	opts := retrieval.Options{
		TopK:           run.req.MaxResults,
		Project:        run.req.ProjectName,
		Section:        run.req.TargetSection,
		IncludeContext: true,
	}
	chunks, err := w.retriever.Retrieve(ctx, run.req.Query, opts)
	if err != nil {
		run.err = fmt.Errorf("retrieve documents: %w", err)
		return outcomeError
	}
	// Zero chunks is a valid outcome; the analysis states the absence.
	run.chunks = chunks
	w.log.Info("documents retrieved", "chunks", len(chunks))
	return outcomeOK
}

func (w *Workflow) analyzeContent(ctx context.Context, run *runState) outcome {
	res, err := w.analyzer.Analyze(ctx, run.req, run.chunks)
	if err != nil {
		run.err = fmt.Errorf("analyze content: %w", err)
		return outcomeError
	}
	run.result = res
	return outcomeOK
}

// handleError shapes a failed run into a result the caller can still use.
func (w *Workflow) handleError(run *runState) *analysis.Result {
	w.log.Warn("workflow error", "error", run.err)
	query := run.req.Query
	if query == "" {
		query = "Unknown query"
	}
	return &analysis.Result{
		Reasoning:        fmt.Sprintf("An error occurred during analysis: %v", run.err),
		Confidence:       0,
		UncertaintyNotes: []string{"Analysis failed due to technical error"},
		Query:            query,
	}
}
