package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/dropcrate/internal/classify"
	"github.com/jaki95/dropcrate/internal/domain"
)

const classifyMetadataTimeout = 45 * time.Second

// classify synchronously wraps L2.fetchInfo and L5/L6 for a set of items,
// per §4.11. It always returns one classification per requested item,
// falling back to the heuristic classifier for the whole batch if the LLM
// is unavailable or errors on any item.
func (s *Server) classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(c, http.StatusBadRequest, "items must not be empty", "")
		return
	}

	start := time.Now()
	ctx := c.Request.Context()

	infos := make([]domain.ExtractedInfo, len(req.Items))
	for i, item := range req.Items {
		info, err := s.deps.Extractor.FetchInfo(ctx, item.URL, classifyMetadataTimeout)
		if err != nil {
			writeError(c, http.StatusBadGateway, "failed to fetch metadata", err.Error())
			return
		}
		infos[i] = info
	}

	source := ClassifySourceHeuristic
	classifications := make([]domain.Classification, len(req.Items))

	if s.deps.LLM != nil {
		llmItems := make([]classify.Item, len(req.Items))
		for i, item := range req.Items {
			llmItems[i] = classify.Item{ID: item.ID, URL: item.URL, Info: infos[i]}
		}
		if out, err := s.deps.LLM.Classify(ctx, llmItems); err == nil && len(out) == len(req.Items) {
			classifications = out
			source = ClassifySourceLLM
		}
	}

	if source == ClassifySourceHeuristic {
		for i, info := range infos {
			classifications[i] = classify.Classify(info)
		}
	}

	results := make([]ClassifyResult, len(req.Items))
	for i, item := range req.Items {
		results[i] = ClassifyResult{ID: item.ID, Classification: classifications[i]}
	}

	c.JSON(http.StatusOK, ClassifyResponse{
		Source:  source,
		Results: results,
		Ms:      time.Since(start).Milliseconds(),
	})
}
