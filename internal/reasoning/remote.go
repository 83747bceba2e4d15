package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/pkg/types"
)

// RemoteConfig configures a RemoteReasoner.
type RemoteConfig struct {
	// BaseURL is the root of the semantic backend, e.g. "http://localhost:8088".
	BaseURL string

	// Timeout bounds each call. Default: 10 seconds.
	Timeout time.Duration
}

// RemoteReasoner calls a semantic backend over HTTP with JSON bodies.
//
//	POST {base}/v1/summarize      {"input": ..., "context": [...]}    -> ReasoningResult
//	POST {base}/v1/contradiction  {"candidate": ..., "existing": [...]} -> Contradiction
type RemoteReasoner struct {
	baseURL string
	client  *http.Client
	breaker *CircuitBreaker
	timeout time.Duration
}

type summarizeRequest struct {
	Input   string   `json:"input"`
	Context []string `json:"context,omitempty"`
}

type contradictionRequest struct {
	Candidate *types.Memory   `json:"candidate"`
	Existing  []*types.Memory `json:"existing"`
}

// NewRemoteReasoner creates a remote reasoner. breaker may be nil.
func NewRemoteReasoner(config RemoteConfig, breaker *CircuitBreaker) *RemoteReasoner {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if breaker == nil {
		breaker = NewCircuitBreaker()
	}
	return &RemoteReasoner{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: config.Timeout},
		breaker: breaker,
		timeout: config.Timeout,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (r *RemoteReasoner) Breaker() *CircuitBreaker { return r.breaker }

// Summarize implements Reasoner.
func (r *RemoteReasoner) Summarize(ctx context.Context, input string, related []string) (types.ReasoningResult, error) {
	var out types.ReasoningResult
	if err := r.call(ctx, "/v1/summarize", summarizeRequest{Input: input, Context: related}, &out); err != nil {
		return types.ReasoningResult{}, err
	}
	out.Confidence = types.ClampUnit(out.Confidence)
	out.Ambiguity = types.ClampUnit(out.Ambiguity)
	return out, nil
}

// CheckContradiction asks the backend whether candidate conflicts with existing.
func (r *RemoteReasoner) CheckContradiction(ctx context.Context, candidate *types.Memory, existing []*types.Memory) (distill.Contradiction, error) {
	var out distill.Contradiction
	err := r.call(ctx, "/v1/contradiction", contradictionRequest{Candidate: candidate, Existing: existing}, &out)
	return out, err
}

func (r *RemoteReasoner) call(ctx context.Context, path string, body, out interface{}) error {
	_, err := r.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, r.post(ctx, path, body, out)
	})
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("reasoning backend unavailable: %w", err)
	}
	return err
}

func (r *RemoteReasoner) post(ctx context.Context, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reasoning backend returned status %d: %s", resp.StatusCode, string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
