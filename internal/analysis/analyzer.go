package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/rfpgest/internal/llm"
	"github.com/dgallion1/rfpgest/internal/retrieval"
)

// Analyzer runs one model-backed analysis over retrieved chunks.
type Analyzer struct {
	completer llm.Completer
	parser    *Parser
	maxTokens int
	log       *slog.Logger
}

func NewAnalyzer(completer llm.Completer, maxTokens int, log *slog.Logger) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 6000
	}
	return &Analyzer{
		completer: completer,
		parser:    NewParser(log),
		maxTokens: maxTokens,
		log:       log,
	}
}

// Analyze builds the query-type prompt over the retrieved context, runs the
// completion, and parses the structured result. The returned error covers
// only the model call itself; parsing always succeeds.
func (a *Analyzer) Analyze(ctx context.Context, req Request, chunks []retrieval.RetrievedChunk) (*Result, error) {
	contextBlock := FormatContext(chunks, a.maxTokens, a.log)
	prompt := buildPrompt(req, contextBlock)

	raw, err := a.completer.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("analysis completion: %w", err)
	}

	res := a.parser.Parse(raw, req.Query)
	res.SourceChunks = chunks

	a.log.Info("analysis complete",
		"query_type", string(req.QueryType),
		"requirements", len(res.Requirements),
		"confidence", res.Confidence)
	return res, nil
}
