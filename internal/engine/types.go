// Package engine runs the single-worker ingestion loop, the maintenance
// scheduler and the query and evaluation entry points over the record store.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/mneme/internal/config"
	"github.com/scrypster/mneme/internal/retrieval"
	"github.com/scrypster/mneme/pkg/types"
)

var (
	// ErrNotStarted is returned by Shutdown before Start.
	ErrNotStarted = errors.New("engine not started")

	// ErrSafeMode is returned by operations refused while in safe mode.
	ErrSafeMode = errors.New("engine is in safe mode")

	// ErrRateLimited is returned by AddToQueue when the enqueue limiter rejects a call.
	ErrRateLimited = errors.New("enqueue rate limit exceeded")
)

// Config holds configuration for the engine.
type Config struct {
	// WorkerInterval is the period of the worker tick (default: 2s).
	WorkerInterval time.Duration

	// SchedulerInterval is the period of the maintenance scheduler tick (default: 30s).
	SchedulerInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for the loops to stop (default: 30s).
	ShutdownTimeout time.Duration

	// MaxRetries is the number of failed attempts after which an item is abandoned (default: 3).
	MaxRetries int

	// EnqueueRate limits AddToQueue calls per second. Zero disables limiting.
	EnqueueRate float64

	// EnqueueBurst is the limiter burst size (default: 10).
	EnqueueBurst int

	// InsightSampleSize bounds the memories read by one insight pass (default: 10).
	InsightSampleSize int

	// MaintenanceInterval forces a maintenance run this long after the last one (default: 24h).
	MaintenanceInterval time.Duration

	// IdleInterval is the minimum gap between idle-triggered runs (default: 6h).
	IdleInterval time.Duration

	// IdleThreshold is the inactivity after which the user counts as idle (default: 60s).
	IdleThreshold time.Duration

	// ColdAfter is the inactivity after which an active memory moves to cold storage (default: 720h).
	ColdAfter time.Duration

	// LogTTL is the decision log retention (default: 720h).
	LogTTL time.Duration

	// MaxDecisionLogs caps the decision log collection (default: 500).
	MaxDecisionLogs int

	// Retrieval configures ranking budgets and the active cluster.
	Retrieval retrieval.Options

	// FeedbackWindow and HistorySize configure the decision controller.
	FeedbackWindow int
	HistorySize    int

	// QuotaBytes is the storage quota used by the pressure check. Zero disables it.
	QuotaBytes int64

	// EncryptionAtRest records that encryption was requested.
	EncryptionAtRest bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WorkerInterval:      2 * time.Second,
		SchedulerInterval:   30 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		MaxRetries:          3,
		EnqueueBurst:        10,
		InsightSampleSize:   10,
		MaintenanceInterval: 24 * time.Hour,
		IdleInterval:        6 * time.Hour,
		IdleThreshold:       60 * time.Second,
		ColdAfter:           30 * 24 * time.Hour,
		LogTTL:              30 * 24 * time.Hour,
		MaxDecisionLogs:     500,
		Retrieval: retrieval.Options{
			NominalBudget:  retrieval.DefaultNominalBudget,
			DegradedBudget: retrieval.DefaultDegradedBudget,
			ActiveCluster:  types.ClusterMain,
		},
		FeedbackWindow: 10,
		HistorySize:    50,
	}
}

// ConfigFrom maps the application configuration onto an engine Config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.WorkerInterval = cfg.Engine.WorkerInterval
	c.SchedulerInterval = cfg.Engine.SchedulerInterval
	c.MaxRetries = cfg.Engine.MaxRetries
	c.EnqueueRate = cfg.Engine.EnqueueRate
	c.EnqueueBurst = cfg.Engine.EnqueueBurst
	c.InsightSampleSize = cfg.Engine.InsightSampleSize
	c.MaintenanceInterval = cfg.Maintenance.Interval
	c.IdleInterval = cfg.Maintenance.IdleInterval
	c.IdleThreshold = cfg.Maintenance.IdleThreshold
	c.ColdAfter = cfg.Maintenance.ColdAfter
	c.LogTTL = cfg.Maintenance.LogTTL
	c.MaxDecisionLogs = cfg.Maintenance.MaxDecisionLogs
	c.Retrieval = retrieval.Options{
		NominalBudget:  cfg.Retrieval.NominalBudget,
		DegradedBudget: cfg.Retrieval.DegradedBudget,
		ActiveCluster:  types.Cluster(cfg.Retrieval.ActiveCluster),
	}
	c.FeedbackWindow = cfg.Controller.FeedbackWindow
	c.HistorySize = cfg.Controller.HistorySize
	c.QuotaBytes = cfg.Storage.QuotaBytes
	c.EncryptionAtRest = cfg.Storage.EncryptionAtRest
	return c
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.WorkerInterval <= 0 {
		return fmt.Errorf("WorkerInterval must be > 0, got %v", c.WorkerInterval)
	}

	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SchedulerInterval must be > 0, got %v", c.SchedulerInterval)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("ShutdownTimeout must be >= 0, got %v", c.ShutdownTimeout)
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("MaxRetries must be >= 1, got %d", c.MaxRetries)
	}

	if c.EnqueueRate < 0 {
		return fmt.Errorf("EnqueueRate must be >= 0, got %v", c.EnqueueRate)
	}

	if c.InsightSampleSize < 1 {
		return fmt.Errorf("InsightSampleSize must be >= 1, got %d", c.InsightSampleSize)
	}

	if c.ColdAfter <= 0 {
		return fmt.Errorf("ColdAfter must be > 0, got %v", c.ColdAfter)
	}

	return nil
}

// QueueStats summarises the queue by state.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Abandoned  int `json:"abandoned"`
	Total      int `json:"total"`
}

// Reply is the answer to a consult call.
type Reply struct {
	Reply       string   `json:"reply"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
	Assumptions []string `json:"assumptions"`
}
