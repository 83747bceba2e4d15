package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/mneme/internal/decision"
	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/internal/intent"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/reasoning"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

// lastMaintenanceMark is the system mark holding the last maintenance run.
const lastMaintenanceMark = "last_maintenance"

// Deps are the collaborators of an Engine. Only Records is required.
type Deps struct {
	Records   *storage.Records
	Validator *distill.Validator
	Checker   distill.ContradictionChecker
	Reasoner  reasoning.Reasoner

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Durable is false when the store is the in-process fallback.
	Durable bool

	// BootWarnings are problems found while opening storage.
	BootWarnings []string
}

// Engine coordinates the record store, the ingestion queue, the
// maintenance scheduler, retrieval and the decision controller.
type Engine struct {
	records    *storage.Records
	validator  *distill.Validator
	checker    distill.ContradictionChecker
	reasoner   reasoning.Reasoner
	controller atomic.Pointer[decision.Controller]
	intents    *intent.Handler
	config     Config
	clock      func() time.Time
	limiter    *rate.Limiter
	observers  notify.Fanout

	durable      bool
	bootWarnings []string

	// ticking guarantees at most one queue item is processed at a time.
	ticking  atomic.Bool
	safeMode atomic.Bool

	activityMu   sync.Mutex
	lastActivity time.Time

	mu           sync.Mutex
	started      bool
	shuttingDown bool
	workerCancel context.CancelFunc
	loops        sync.WaitGroup
}

// New creates an engine over deps.Records.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		records:      deps.Records,
		validator:    deps.Validator,
		checker:      deps.Checker,
		reasoner:     deps.Reasoner,
		config:       cfg,
		clock:        deps.Clock,
		durable:      deps.Durable,
		bootWarnings: append([]string(nil), deps.BootWarnings...),
	}
	if e.validator == nil {
		e.validator = distill.NewValidator(true)
	}
	if e.checker == nil {
		e.checker = distill.LocalChecker{}
	}
	if e.reasoner == nil {
		e.reasoner = reasoning.NewLocalReasoner()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if cfg.EnqueueRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.EnqueueRate), max(cfg.EnqueueBurst, 1))
	}

	e.ReloadState(context.Background())
	e.intents = intent.NewHandler(e.records, e.clock)

	return e, nil
}

// biasRecorder adapts the record store to decision.Recorder.
type biasRecorder struct {
	records *storage.Records
}

func (b biasRecorder) RecordBias(ctx context.Context, snap types.BiasSnapshot) error {
	return b.records.RecordBiasSnapshot(ctx, snap)
}

// Records returns the record store used by the engine.
func (e *Engine) Records() *storage.Records { return e.records }

// Controller returns the decision controller.
func (e *Engine) Controller() *decision.Controller { return e.controller.Load() }

// ReloadState rebuilds the decision controller from the persisted state.
// Call it after the store was imported or reset underneath the engine.
func (e *Engine) ReloadState(ctx context.Context) {
	st := e.records.LoadControllerState(ctx)
	e.controller.Store(decision.NewController(decision.State{
		Bias:    st.Bias,
		History: st.History,
		Notes:   st.Notes,
	}, decision.Options{
		FeedbackWindow: e.config.FeedbackWindow,
		HistorySize:    e.config.HistorySize,
		Clock:          e.clock,
		Recorder:       biasRecorder{records: e.records},
	}))
}

// AddObserver registers o for store-updated events.
func (e *Engine) AddObserver(o notify.Observer) {
	e.observers.Add(o)
}

func (e *Engine) emit(eventType, id string) {
	e.observers.StoreUpdated(notify.Event{Type: eventType, ID: id, Time: e.clock()})
}

// SetSafeMode enables or disables safe mode. While enabled the worker
// processes nothing.
func (e *Engine) SetSafeMode(on bool) {
	if e.safeMode.Swap(on) != on {
		if on {
			log.Println("WARNING: Entering safe mode, queue processing suspended")
		} else {
			log.Println("Leaving safe mode, queue processing resumed")
		}
	}
}

// SafeMode reports whether safe mode is enabled.
func (e *Engine) SafeMode() bool {
	return e.safeMode.Load()
}

// Status returns the system load state derived from safe mode.
func (e *Engine) Status() types.SystemStatus {
	if e.safeMode.Load() {
		return types.SystemSafeMode
	}
	return types.SystemNominal
}

// RecordActivity notes user activity at now for idle detection.
func (e *Engine) RecordActivity(now time.Time) {
	e.activityMu.Lock()
	if now.After(e.lastActivity) {
		e.lastActivity = now
	}
	e.activityMu.Unlock()
}

// LastActivity returns the last recorded user activity.
func (e *Engine) LastActivity() time.Time {
	e.activityMu.Lock()
	defer e.activityMu.Unlock()
	return e.lastActivity
}

// Start begins the worker and scheduler loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	if e.shuttingDown {
		return fmt.Errorf("engine is shutting down")
	}

	log.Println("Starting engine...")

	if err := e.RecoverInterrupted(ctx); err != nil {
		log.Printf("ERROR: Queue recovery failed: %v", err)
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.workerCancel = cancel

	e.loops.Add(2)
	go e.workerLoop(workerCtx)
	go e.schedulerLoop(workerCtx)

	e.started = true
	log.Printf("Engine started: worker every %v, scheduler every %v",
		e.config.WorkerInterval, e.config.SchedulerInterval)

	return nil
}

// Shutdown stops both loops, waiting for an in-flight item to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	log.Println("Shutting down engine...")
	e.shuttingDown = true
	if e.workerCancel != nil {
		e.workerCancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.loops.Wait()
		close(done)
	}()

	var err error
	timeout := e.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	select {
	case <-done:
	case <-time.After(timeout):
		log.Println("WARNING: Shutdown timeout reached, an in-flight queue item may be interrupted")
	case <-ctx.Done():
		log.Println("WARNING: Context cancelled before the worker finished")
		err = ctx.Err()
	}

	e.mu.Lock()
	e.started = false
	e.shuttingDown = false
	e.mu.Unlock()

	if err == nil {
		log.Println("Engine shut down successfully")
	}
	return err
}

func (e *Engine) workerLoop(ctx context.Context) {
	defer e.loops.Done()

	ticker := time.NewTicker(e.config.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Tick(ctx); err != nil && err != ErrSafeMode {
				log.Printf("WARNING: Worker tick failed: %v", err)
			}
		}
	}
}

func (e *Engine) schedulerLoop(ctx context.Context) {
	defer e.loops.Done()

	ticker := time.NewTicker(e.config.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.MaintenanceTick(ctx, e.clock(), e.LastActivity()); err != nil {
				log.Printf("WARNING: Maintenance scheduling failed: %v", err)
			}
		}
	}
}
