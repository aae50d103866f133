package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/pkg/logger"
)

const (
	lockHandler  = "triage"
	saveAttempts = 3
)

var (
	ErrInvalidEmail   = errors.New("email id is required")
	ErrInFlight       = errors.New("email is already being processed")
	ErrNotCancellable = errors.New("run already finished")
)

// Engine 图引擎能力，*graph.Engine 满足该接口
type Engine interface {
	Start(email model.Email) *model.RunState
	Continue(ctx context.Context, st *model.RunState, email model.Email) (*model.RunState, error)
	Resume(ctx context.Context, st *model.RunState, email model.Email, d model.HumanDecision) (*model.RunState, error)
	Cancel(ctx context.Context, st *model.RunState, reason string) (*model.RunState, error)
}

// RunStore 持久化 RunState；同一封邮件只能有一个 run。Create 占位，
// Save 不覆盖已结束的 run
type RunStore interface {
	Create(ctx context.Context, st *model.RunState, email model.Email) error
	Save(ctx context.Context, st *model.RunState, email model.Email) error
	Get(ctx context.Context, runID string) (*model.RunState, model.Email, error)
	GetByEmail(ctx context.Context, emailID string) (*model.RunState, model.Email, error)
	ListByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.RunState, error)
}

// Locker 跨实例的邮件锁，*util.Deduper 满足该接口
type Locker interface {
	AcquireOnce(ctx context.Context, handler string, key string) bool
	Release(ctx context.Context, handler string, key string)
}

// TriageService 负责去重、持久化和并发调度，单封邮件的流程交给 Engine
type TriageService struct {
	engine      Engine
	runs        RunStore
	locker      Locker
	logger      *zap.Logger
	concurrency int
	saveBackoff time.Duration

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewTriageService creates the service. locker may be nil when Redis is not
// configured; in-process locking still applies.
func NewTriageService(engine Engine, runs RunStore, locker Locker, concurrency int, logger *zap.Logger) *TriageService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &TriageService{
		engine:      engine,
		runs:        runs,
		locker:      locker,
		logger:      logger,
		concurrency: concurrency,
		saveBackoff: 200 * time.Millisecond,
		inflight:    make(map[string]context.CancelFunc),
	}
}

// Process runs one email through the graph. An email that already has a
// run returns that run unchanged. The email is claimed with a RUNNING row
// before any node runs, so a duplicate delivery never repeats side effects.
func (s *TriageService) Process(ctx context.Context, email model.Email) (*model.RunState, error) {
	if email.ID == "" {
		return nil, ErrInvalidEmail
	}
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = time.Now().UTC()
	}
	log := logger.WithEmail(ctx, s.logger, email.ID)

	if existing, err := s.existing(ctx, log, email.ID); existing != nil || err != nil {
		return existing, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	release, err := s.claim(ctx, email.ID, cancel)
	if err != nil {
		return nil, err
	}
	defer release()

	st := s.engine.Start(email)
	if err := s.runs.Create(ctx, st, email); err != nil {
		if errors.Is(err, repository.ErrRunExists) {
			// 并发请求已先占位
			return s.existing(ctx, log, email.ID)
		}
		return nil, model.E(model.KindPersistenceFailure, "service.Process", err)
	}

	st, runErr := s.engine.Continue(runCtx, st, email)
	if err := s.save(ctx, st, email); err != nil {
		log.Error("Failed to save run", zap.String("run_id", st.RunID), zap.Error(err))
		return st, model.E(model.KindPersistenceFailure, "service.Process", err)
	}
	return st, runErr
}

// existing returns the stored run of an email, or nil when there is none.
func (s *TriageService) existing(ctx context.Context, log *zap.Logger, emailID string) (*model.RunState, error) {
	st, _, err := s.runs.GetByEmail(ctx, emailID)
	switch {
	case err == nil:
		log.Info("Email already processed, returning existing run",
			zap.String("run_id", st.RunID),
			zap.String("status", string(st.Status)),
		)
		return st, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	default:
		return nil, model.E(model.KindPersistenceFailure, "service.Process", err)
	}
}

// Result is the outcome of one email in a batch.
type Result struct {
	EmailID string
	State   *model.RunState
	Err     error
}

// ProcessBatch runs emails concurrently. A failing email never affects the
// others; results keep the input order.
func (s *TriageService) ProcessBatch(ctx context.Context, emails []model.Email) []Result {
	results := make([]Result, len(emails))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, email := range emails {
		g.Go(func() error {
			st, err := s.Process(ctx, email)
			results[i] = Result{EmailID: email.ID, State: st, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Get returns a stored run by run id.
func (s *TriageService) Get(ctx context.Context, runID string) (*model.RunState, error) {
	st, _, err := s.runs.Get(ctx, runID)
	return st, err
}

// List returns runs in the given status, least recently updated first.
func (s *TriageService) List(ctx context.Context, status model.RunStatus, limit int) ([]*model.RunState, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.runs.ListByStatus(ctx, status, limit)
}

// Decide resumes a WAITING_HUMAN run identified by run id.
func (s *TriageService) Decide(ctx context.Context, runID string, d model.HumanDecision) (*model.RunState, error) {
	_, email, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.resume(ctx, email.ID, d)
}

// DecideByEmail resumes the WAITING_HUMAN run of an email.
func (s *TriageService) DecideByEmail(ctx context.Context, emailID string, d model.HumanDecision) (*model.RunState, error) {
	return s.resume(ctx, emailID, d)
}

func (s *TriageService) resume(ctx context.Context, emailID string, d model.HumanDecision) (*model.RunState, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	release, err := s.claim(ctx, emailID, cancel)
	if err != nil {
		return nil, err
	}
	defer release()

	// 持锁后再读，避免基于过期状态恢复
	st, email, err := s.runs.GetByEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}

	next, err := s.engine.Resume(runCtx, st, email, d)
	if rejectedResume(err) {
		return st, err
	}

	if serr := s.save(ctx, next, email); serr != nil {
		return next, model.E(model.KindPersistenceFailure, "service.Resume", serr)
	}
	logger.WithEmail(ctx, s.logger, email.ID).Info("Run resumed",
		zap.String("run_id", next.RunID),
		zap.String("status", string(next.Status)),
		zap.String("action", string(d.Action)),
	)
	return next, err
}

// Cancel stops a run. id may be a run id or an email id. A run in flight is
// cancelled at its next node boundary and (nil, nil) is returned. A run
// waiting for a decision, or a RUNNING claim nothing executes any more, is
// failed immediately.
func (s *TriageService) Cancel(ctx context.Context, id string) (*model.RunState, error) {
	st, email, err := s.runs.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		if s.cancelInFlight(id) {
			return nil, nil
		}
		st, email, err = s.runs.GetByEmail(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if s.cancelInFlight(email.ID) {
		return nil, nil
	}
	if st.Status.Terminal() {
		return st, ErrNotCancellable
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	release, err := s.claim(opCtx, email.ID, cancel)
	if err != nil {
		return st, err
	}
	defer release()

	st, email, err = s.runs.GetByEmail(ctx, email.ID)
	if err != nil {
		return nil, err
	}
	if st.Status.Terminal() {
		return st, ErrNotCancellable
	}
	if st.Status == model.RunRunning {
		logger.WithEmail(ctx, s.logger, email.ID).Warn("Cancelling orphaned run claim", zap.String("run_id", st.RunID))
	}

	next, err := s.engine.Cancel(ctx, st, "cancelled by request")
	if err != nil {
		return st, err
	}
	if err := s.save(ctx, next, email); err != nil {
		return next, model.E(model.KindPersistenceFailure, "service.Cancel", err)
	}
	return next, nil
}

// claim takes the in-process and, when configured, the cross-instance lock
// of an email. cancel is what Cancel calls while the claim is held.
func (s *TriageService) claim(ctx context.Context, emailID string, cancel context.CancelFunc) (func(), error) {
	if !s.begin(emailID, cancel) {
		return nil, ErrInFlight
	}
	if s.locker != nil && !s.locker.AcquireOnce(ctx, lockHandler, emailID) {
		s.end(emailID)
		return nil, ErrInFlight
	}
	return func() {
		if s.locker != nil {
			s.locker.Release(context.WithoutCancel(ctx), lockHandler, emailID)
		}
		s.end(emailID)
	}, nil
}

// save persists a state the engine produced. Store errors are retried with
// the same state; the graph is never re-run to recover a lost write.
func (s *TriageService) save(ctx context.Context, st *model.RunState, email model.Email) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * s.saveBackoff)
		}
		err = s.runs.Save(ctx, st, email)
		if err == nil || errors.Is(err, repository.ErrRunExists) || errors.Is(err, repository.ErrRunFinished) {
			return err
		}
	}
	return err
}

func (s *TriageService) begin(emailID string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[emailID]; ok {
		return false
	}
	s.inflight[emailID] = cancel
	return true
}

func (s *TriageService) end(emailID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, emailID)
}

func (s *TriageService) cancelInFlight(emailID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.inflight[emailID]
	if ok {
		cancel()
	}
	return ok
}

func rejectedResume(err error) bool {
	return errors.Is(err, graph.ErrNotWaiting) ||
		errors.Is(err, graph.ErrEmailMismatch) ||
		errors.Is(err, graph.ErrInvalidDecision) ||
		errors.Is(err, graph.ErrNodeNotResumable)
}
