package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/turn"
)

const (
	httpTimeout    = 60 * time.Second
	extractRetries = 2
	retryBackoff   = 200 * time.Millisecond
)

// HTTPExtractor asks cognitive-core to classify a message.
type HTTPExtractor struct {
	cognitiveURL string
	httpClient   *http.Client
	backoff      time.Duration
	log          *logger.Logger
}

func NewHTTPExtractor(cognitiveURL string, log *logger.Logger) *HTTPExtractor {
	return &HTTPExtractor{
		cognitiveURL: cognitiveURL,
		httpClient:   &http.Client{Timeout: httpTimeout},
		backoff:      retryBackoff,
		log:          log.With("component", "extractor"),
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("cognitive-core returned %d: %s", e.code, e.body)
}

// Extract retries transport errors and 5xx responses with doubling backoff
// until ctx is done.
func (x *HTTPExtractor) Extract(ctx context.Context, text, language string, summary map[string]string) (turn.Extraction, error) {
	req := models.ExtractRequest{
		Message:  text,
		Language: language,
		Flow:     summary["flow"],
		Pending:  summary["pending_field"],
		Context:  summary,
	}

	wait := x.backoff
	var lastErr error
	for attempt := 0; attempt <= extractRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return turn.Extraction{}, fmt.Errorf("extract: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(wait):
			}
			wait *= 2
		}
		resp, err := x.callCognitiveCore(ctx, req)
		if err == nil {
			return turn.Extraction{
				Intent:     models.ParseIntent(resp.Intent),
				Entities:   resp.Entities,
				Confidence: resp.Confidence,
				Answer:     resp.Answer,
			}, nil
		}
		lastErr = err
		if se, ok := err.(*statusError); ok && se.code < 500 {
			break
		}
		x.log.Debug("extract attempt failed", "attempt", attempt+1, "error", err)
	}
	return turn.Extraction{}, lastErr
}

func (x *HTTPExtractor) callCognitiveCore(ctx context.Context, req models.ExtractRequest) (*models.ExtractResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/extract", x.cognitiveURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	var out models.ExtractResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}
