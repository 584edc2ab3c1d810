package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DegradedWarning is shown when a submission could only be recorded locally.
const DegradedWarning = "submission could not be saved to the shared dataset; showing local results"

// Session is one client's pass through AwaitingInput -> Submitting -> Result.
// Its dataset snapshot may be shared with the workflow and other sessions and
// is never written in place; callers only ever receive copies.
type Session struct {
	id string
	w  *Workflow

	mu       sync.Mutex
	state    State
	form     *Form
	dataset  Dataset
	seq      uint64
	result   *ResultView
	analysis *AnalysisTask

	bg sync.WaitGroup
}

func newSession(id string, w *Workflow, ds Dataset) *Session {
	return &Session{
		id:      id,
		w:       w,
		state:   StateAwaitingInput,
		form:    NewForm(),
		dataset: ds,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dataset returns a copy of the session's current snapshot.
func (s *Session) Dataset() Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset.Clone()
}

func (s *Session) formViewLocked() FormView {
	return FormView{
		Fields:      s.form.Fields(),
		FieldErrors: s.form.FieldErrors(),
		State:       s.state,
	}
}

// Form returns the current form snapshot.
func (s *Session) Form() FormView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formViewLocked()
}

// SetReviewerCount switches between three and four score fields.
func (s *Session) SetReviewerCount(n int) (FormView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingInput {
		return s.formViewLocked(), ErrInvalidState
	}
	err := s.form.SetReviewerCount(n)
	return s.formViewLocked(), err
}

// SetScore stores raw input for field i. The returned error is the field's
// live validation result and does not undo the edit.
func (s *Session) SetScore(i int, raw string) (FormView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingInput {
		return s.formViewLocked(), ErrInvalidState
	}
	err := s.form.SetField(i, raw)
	return s.formViewLocked(), err
}

// Submit validates the form, sends the submission to the persistence gateway
// and moves to Result. A gateway failure degrades to a locally appended
// dataset instead of failing.
func (s *Session) Submit(ctx context.Context) (ResultView, error) {
	s.mu.Lock()
	if s.state != StateAwaitingInput {
		s.mu.Unlock()
		return ResultView{}, ErrInvalidState
	}
	sub, err := s.form.Validate()
	if err != nil {
		s.mu.Unlock()
		return ResultView{}, err
	}
	s.state = StateSubmitting
	s.seq++
	held := s.dataset
	s.mu.Unlock()

	logger := s.w.logger.With(zap.String("session_id", s.id))

	gwCtx, cancel := context.WithTimeout(ctx, s.w.gatewayTimeout)
	updated, gwErr := s.w.persistence.Submit(gwCtx, sub)
	cancel()

	view := ResultView{Submission: sub}
	if gwErr != nil {
		s.w.metrics.GatewayFailure("submit")
		s.w.metrics.DegradedSubmission()
		logger.Warn("submit failed, recording locally", zap.Error(gwErr))
		updated = held.WithSubmission(sub)
		view.Warning = DegradedWarning
		view.Degraded = true
	} else {
		s.w.adopt(updated)
	}

	history, ok := updated.WithoutSubmission(sub)
	if !ok {
		logger.Warn("updated dataset does not contain the submission",
			zap.Int("submissions", len(updated.AllAverages)))
	}
	view.Distribution = Aggregate(history, sub)
	s.reportDrops(logger, view.Distribution)

	task := s.w.analysis.Start(sub)

	s.mu.Lock()
	s.dataset = updated
	s.state = StateResult
	s.result = &view
	s.analysis = task
	s.mu.Unlock()

	logger.Info("submission processed",
		zap.Ints("scores", sub.Scores),
		zap.Float64("average", sub.Average),
		zap.Int("total", view.Distribution.Total),
		zap.Bool("degraded", view.Degraded))

	return view, nil
}

func (s *Session) reportDrops(logger *zap.Logger, d Distribution) {
	if d.DroppedAverages > 0 {
		s.w.metrics.DroppedValues("average", d.DroppedAverages)
		logger.Warn("averages outside every bucket", zap.Int("dropped", d.DroppedAverages))
	}
	if d.DroppedRawScores > 0 {
		s.w.metrics.DroppedValues("raw_score", d.DroppedRawScores)
		logger.Warn("raw scores outside 1..6", zap.Int("dropped", d.DroppedRawScores))
	}
}

// Result returns the last result view while in the Result state.
func (s *Session) Result() (ResultView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResult || s.result == nil {
		return ResultView{}, false
	}
	return *s.result, true
}

// Analysis returns the pending analysis for the current result, if any.
func (s *Session) Analysis() (*AnalysisTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResult || s.analysis == nil {
		return nil, fmt.Errorf("%w: no result to analyse", ErrInvalidState)
	}
	return s.analysis, nil
}

// SubmitAnother returns to AwaitingInput with a fresh form and refreshes the
// dataset in the background. A refresh is dropped if a newer submit started
// before it resolved.
func (s *Session) SubmitAnother() (FormView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResult {
		return s.formViewLocked(), ErrInvalidState
	}
	s.state = StateAwaitingInput
	s.form.Reset()
	s.result = nil
	s.analysis = nil
	s.seq++
	issued := s.seq

	s.bg.Add(1)
	s.w.bg.Add(1)
	go s.refresh(issued)

	return s.formViewLocked(), nil
}

func (s *Session) refresh(issued uint64) {
	defer s.w.bg.Done()
	defer s.bg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.w.gatewayTimeout)
	defer cancel()

	logger := s.w.logger.With(zap.String("session_id", s.id))

	ds, err := s.w.persistence.Fetch(ctx)
	if err != nil {
		s.w.metrics.GatewayFailure("fetch")
		logger.Debug("background refresh failed, keeping current dataset", zap.Error(err))
		return
	}

	s.w.adopt(ds)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != issued {
		logger.Debug("discarding stale refresh", zap.Uint64("issued", issued), zap.Uint64("current", s.seq))
		return
	}
	s.dataset = ds
}

// WaitIdle blocks until background refreshes have finished.
func (s *Session) WaitIdle() {
	s.bg.Wait()
}
