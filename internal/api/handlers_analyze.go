package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/rfpgest/internal/analysis"
)

// handleAnalyze runs one analysis workflow over the indexed documents. The
// workflow shapes its own failures into the result, so anything past request
// validation answers 200.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	result := s.workflow.Run(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
