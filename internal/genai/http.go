// internal/genai/http.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vocab-reconciler/internal/common/config"
	reconerrors "vocab-reconciler/internal/common/errors"
	httpclient "vocab-reconciler/internal/common/http"
	"vocab-reconciler/internal/models"
)

// HTTPSummarizer calls an external generation endpoint to produce a short
// disambiguation rationale for a ranked candidate list. Stateless.
type HTTPSummarizer struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
}

// NewHTTPSummarizer creates a summarizer from the GenAI config.
func NewHTTPSummarizer(cfg config.GenAIConfig) *HTTPSummarizer {
	return &HTTPSummarizer{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  httpclient.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
	}
}

type summarizeRequest struct {
	Query      string               `json:"query"`
	Candidates []summarizeCandidate `json:"candidates"`
}

type summarizeCandidate struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type summarizeResponse struct {
	Rationale string `json:"rationale"`
}

// Summarize posts the query and its ranked candidates and returns the
// generated rationale.
func (s *HTTPSummarizer) Summarize(ctx context.Context, query string, candidates []models.Candidate) (string, error) {
	payload := summarizeRequest{Query: query}
	for _, c := range candidates {
		payload.Candidates = append(payload.Candidates, summarizeCandidate{
			ID:    c.ID,
			Name:  c.Name,
			Score: c.Score,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", reconerrors.NewSummaryFailedError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/ai/summarize", bytes.NewReader(body))
	if err != nil {
		return "", reconerrors.NewSummaryFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", reconerrors.NewSummaryFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", reconerrors.NewSummaryFailedError(fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed summarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", reconerrors.NewSummaryFailedError(err)
	}

	return parsed.Rationale, nil
}
