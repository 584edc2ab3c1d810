package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultMaxSessions    = 10000
	defaultSessionTTL     = 30 * time.Minute
)

var (
	ErrInvalidState    = errors.New("action not allowed in current state")
	ErrEmptySessionID  = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Workflow owns the process-wide baseline dataset and the per-client sessions
// built on top of it.
type Workflow struct {
	persistence    PersistenceGateway
	analysis       *AnalysisService
	logger         *zap.Logger
	metrics        MetricsRecorder
	gatewayTimeout time.Duration
	maxSessions    int
	sessionTTL     time.Duration

	mu       sync.Mutex
	baseline Dataset
	sessions *expirable.LRU[string, *Session]

	bg sync.WaitGroup
}

type WorkflowOption func(*Workflow)

func WithGatewayTimeout(d time.Duration) WorkflowOption {
	return func(w *Workflow) {
		if d > 0 {
			w.gatewayTimeout = d
		}
	}
}

// WithSessionLimits bounds the number of live sessions and evicts sessions
// idle for longer than ttl. Zero keeps the default.
func WithSessionLimits(limit int, ttl time.Duration) WorkflowOption {
	return func(w *Workflow) {
		if limit > 0 {
			w.maxSessions = limit
		}
		if ttl > 0 {
			w.sessionTTL = ttl
		}
	}
}

func WithWorkflowMetrics(m MetricsRecorder) WorkflowOption {
	return func(w *Workflow) {
		if m != nil {
			w.metrics = m
		}
	}
}

// NewWorkflow creates a Workflow whose baseline starts as seed until
// Bootstrap replaces it.
func NewWorkflow(persistence PersistenceGateway, analysis *AnalysisService, seed Dataset, logger *zap.Logger, opts ...WorkflowOption) *Workflow {
	if persistence == nil {
		panic("persistence gateway must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	if analysis == nil {
		analysis = NewAnalysisService(nil, logger)
	}
	w := &Workflow{
		persistence:    persistence,
		analysis:       analysis,
		logger:         logger.Named("workflow"),
		metrics:        nopMetrics{},
		gatewayTimeout: defaultGatewayTimeout,
		maxSessions:    defaultMaxSessions,
		sessionTTL:     defaultSessionTTL,
		baseline:       seed.Clone(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.sessions = expirable.NewLRU[string, *Session](w.maxSessions, nil, w.sessionTTL)
	return w
}

// Bootstrap fetches the initial dataset once. On failure the seed stays in
// place so the first page is never empty.
func (w *Workflow) Bootstrap(ctx context.Context) Dataset {
	ctx, cancel := context.WithTimeout(ctx, w.gatewayTimeout)
	defer cancel()

	ds, err := w.persistence.Fetch(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.metrics.GatewayFailure("fetch")
		w.logger.Warn("initial fetch failed, using seed dataset",
			zap.Int("seed_submissions", len(w.baseline.AllAverages)),
			zap.Error(err))
		return w.baseline.Clone()
	}

	w.baseline = ds.Clone()
	w.logger.Info("initial dataset loaded", zap.Int("submissions", len(ds.AllAverages)))
	return ds
}

// Baseline returns a copy of the dataset new sessions start from.
func (w *Workflow) Baseline() Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.baseline.Clone()
}

// adopt makes ds the baseline for sessions created from now on. Snapshots
// with fewer submissions than the current baseline are ignored, so a slow
// response cannot roll the baseline back.
func (w *Workflow) adopt(ds Dataset) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(ds.AllAverages) < len(w.baseline.AllAverages) {
		return
	}
	w.baseline = ds
}

// Session returns the session for id, creating it on first use. Sessions
// share the baseline snapshot and only copy it when they diverge.
func (w *Workflow) Session(id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sessions.Get(id); ok {
		w.sessions.Add(id, s)
		return s, nil
	}
	s := newSession(id, w, w.baseline)
	if w.sessions.Add(id, s) {
		w.logger.Debug("session limit reached, evicted least recently used")
	}
	w.logger.Debug("session created", zap.String("session_id", id))
	return s, nil
}

// Lookup returns an existing session without creating one.
func (w *Workflow) Lookup(id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	w.sessions.Add(id, s)
	return s, nil
}

// Sessions reports how many sessions are currently held.
func (w *Workflow) Sessions() int {
	return w.sessions.Len()
}

// Wait blocks until background refreshes of every session, evicted or not,
// have finished.
func (w *Workflow) Wait() {
	w.bg.Wait()
}
