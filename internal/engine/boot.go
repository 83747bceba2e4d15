package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/scrypster/mneme/internal/storage"
)

// storagePressureRatio is the quota fraction that triggers a pressure warning.
const storagePressureRatio = 0.9

// RunSystemBootCheck returns human-readable warnings about the running
// system. It never fails; callers decide whether to enter safe mode.
func (e *Engine) RunSystemBootCheck(ctx context.Context) []string {
	warnings := append([]string{}, e.bootWarnings...)

	if !e.durable && len(e.bootWarnings) == 0 {
		warnings = append(warnings, "running on non-durable in-memory storage; changes will be lost on exit")
	}

	kv := e.records.KV()
	if err := storage.Probe(ctx, kv); err != nil {
		warnings = append(warnings, fmt.Sprintf("storage probe failed: %v", err))
	}

	if reporter, ok := kv.(storage.UsageReporter); ok && e.config.QuotaBytes > 0 {
		used, err := reporter.Usage(ctx)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("storage usage unavailable: %v", err))
		case float64(used) >= storagePressureRatio*float64(e.config.QuotaBytes):
			warnings = append(warnings, fmt.Sprintf("storage pressure at %.0f%% of quota (%d of %d bytes)",
				100*float64(used)/float64(e.config.QuotaBytes), used, e.config.QuotaBytes))
		}
	}

	if e.config.EncryptionAtRest {
		warnings = append(warnings, "encryption at rest is enabled in settings but not available; records are stored unencrypted")
	}

	if stats, err := e.QueueStats(ctx); err != nil {
		warnings = append(warnings, fmt.Sprintf("queue unreadable: %v", err))
	} else if stats.Abandoned > 0 {
		warnings = append(warnings, fmt.Sprintf("%d queue items abandoned after %d failed attempts",
			stats.Abandoned, e.config.MaxRetries))
	}

	for _, w := range warnings {
		log.Printf("WARNING: boot check: %s", w)
	}
	return warnings
}

// Durable reports whether the engine runs on durable storage.
func (e *Engine) Durable() bool { return e.durable }
