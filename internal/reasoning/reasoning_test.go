package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/config"
	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/pkg/types"
)

func TestLocalReasoner_ClearStatement(t *testing.T) {
	r := NewLocalReasoner()
	res, err := r.Summarize(context.Background(), "The Atlas launch moved to 14 March.", nil)
	require.NoError(t, err)

	assert.Equal(t, "The Atlas launch moved to 14 March", res.SummaryOfChange)
	assert.GreaterOrEqual(t, res.Confidence, 0.75)
	assert.LessOrEqual(t, res.Ambiguity, 0.2)
	assert.Empty(t, res.QuestionsToAsk)
}

func TestLocalReasoner_HedgedAndAmbiguous(t *testing.T) {
	r := NewLocalReasoner()
	res, err := r.Summarize(context.Background(), "maybe we should move it to next week?", nil)
	require.NoError(t, err)

	assert.Less(t, res.Confidence, 0.6)
	assert.Greater(t, res.Ambiguity, 0.5)
	assert.NotEmpty(t, res.QuestionsToAsk)
}

func TestLocalReasoner_RevisionCue(t *testing.T) {
	res, err := NewLocalReasoner().Summarize(context.Background(), "Actually the meeting is on Friday", nil)
	require.NoError(t, err)
	assert.Contains(t, res.SuggestedEffects, "revise earlier memory")
}

func TestLocalReasoner_EmptyInput(t *testing.T) {
	_, err := NewLocalReasoner().Summarize(context.Background(), "   ", nil)
	assert.Error(t, err)
}

func TestRemoteReasoner_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/summarize", r.URL.Path)
		var req summarizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(types.ReasoningResult{
			SummaryOfChange: "remote: " + req.Input,
			Confidence:      1.4,
			Ambiguity:       -1,
		})
	}))
	defer srv.Close()

	r := NewRemoteReasoner(RemoteConfig{BaseURL: srv.URL + "/", Timeout: time.Second}, nil)
	res, err := r.Summarize(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "remote: hello", res.SummaryOfChange)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, 0.0, res.Ambiguity)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := NewCircuitBreakerWithConfig(CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute})
	r := NewRemoteReasoner(RemoteConfig{BaseURL: srv.URL}, breaker)

	for i := 0; i < 2; i++ {
		_, err := r.Summarize(context.Background(), "x", nil)
		require.Error(t, err)
	}
	assert.Equal(t, "open", breaker.State())

	_, err := r.Summarize(context.Background(), "x", nil)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the backend")

	stats := breaker.Stats()
	assert.Equal(t, uint64(3), stats.Calls)
	assert.Equal(t, uint64(2), stats.Failures)
	assert.Equal(t, uint64(1), stats.Rejected)
}

type failingReasoner struct{}

func (failingReasoner) Summarize(context.Context, string, []string) (types.ReasoningResult, error) {
	return types.ReasoningResult{}, errors.New("offline")
}

func TestGuarded_FallsBack(t *testing.T) {
	g := NewGuarded(failingReasoner{}, NewLocalReasoner())
	res, err := g.Summarize(context.Background(), "Lunch with Maria on Tuesday", nil)
	require.NoError(t, err)
	assert.Equal(t, "Lunch with Maria on Tuesday", res.SummaryOfChange)
}

func TestRemoteChecker(t *testing.T) {
	var reply distill.Contradiction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()

	checker := NewRemoteChecker(NewRemoteReasoner(RemoteConfig{BaseURL: srv.URL}, nil))
	candidate := &types.Memory{ID: "mem:general:new", Content: "lives in Porto"}

	reply = distill.Contradiction{IsContradictory: true, Reasoning: "city differs", ConflictingID: "mem:general:old"}
	got, err := checker.Check(context.Background(), candidate, nil)
	require.NoError(t, err)
	assert.True(t, got.IsContradictory)
	assert.Equal(t, "mem:general:old", got.ConflictingID)

	reply = distill.Contradiction{IsContradictory: true, Reasoning: "no id"}
	got, err = checker.Check(context.Background(), candidate, nil)
	require.NoError(t, err)
	assert.False(t, got.IsContradictory, "a contradiction needs a conflicting reference")
}

func TestNew_SelectsProvider(t *testing.T) {
	r, c, err := New(config.ReasoningConfig{Provider: "local"})
	require.NoError(t, err)
	assert.IsType(t, &LocalReasoner{}, r)
	assert.IsType(t, distill.LocalChecker{}, c)

	r, c, err = New(config.ReasoningConfig{Provider: "remote", RemoteURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.IsType(t, &Guarded{}, r)
	assert.IsType(t, &RemoteChecker{}, c)

	_, _, err = New(config.ReasoningConfig{Provider: "remote"})
	assert.Error(t, err)

	_, _, err = New(config.ReasoningConfig{Provider: "oracle"})
	assert.Error(t, err)
}
