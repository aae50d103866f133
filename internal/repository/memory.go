package repository

import (
	"context"
	"sort"
	"sync"

	"mailtriage/internal/model"
)

type storedRun struct {
	state *model.RunState
	email model.Email
}

// MemoryRunRepository is an in-process run store for the CLI and tests.
type MemoryRunRepository struct {
	mu      sync.RWMutex
	byEmail map[string]storedRun
	byRun   map[string]string
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{
		byEmail: make(map[string]storedRun),
		byRun:   make(map[string]string),
	}
}

// Create stores the first state of an email's run.
func (r *MemoryRunRepository) Create(ctx context.Context, st *model.RunState, email model.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[st.EmailID]; ok {
		return ErrRunExists
	}
	r.put(st, email)
	return nil
}

func (r *MemoryRunRepository) Save(ctx context.Context, st *model.RunState, email model.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byEmail[st.EmailID]; ok {
		if existing.state.RunID != st.RunID {
			return ErrRunExists
		}
		if existing.state.Status.Terminal() {
			return ErrRunFinished
		}
	}
	r.put(st, email)
	return nil
}

func (r *MemoryRunRepository) put(st *model.RunState, email model.Email) {
	r.byEmail[st.EmailID] = storedRun{state: st.Clone(), email: email}
	r.byRun[st.RunID] = st.EmailID
}

func (r *MemoryRunRepository) Get(ctx context.Context, runID string) (*model.RunState, model.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	emailID, ok := r.byRun[runID]
	if !ok {
		return nil, model.Email{}, ErrNotFound
	}
	s := r.byEmail[emailID]
	return s.state.Clone(), s.email, nil
}

func (r *MemoryRunRepository) GetByEmail(ctx context.Context, emailID string) (*model.RunState, model.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byEmail[emailID]
	if !ok {
		return nil, model.Email{}, ErrNotFound
	}
	return s.state.Clone(), s.email, nil
}

func (r *MemoryRunRepository) ListByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.RunState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.RunState
	for _, s := range r.byEmail {
		if s.state.Status == status {
			out = append(out, s.state.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryDraftRepository keeps PASSED drafts in memory.
type MemoryDraftRepository struct {
	mu     sync.Mutex
	drafts []model.DraftReply
}

func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{}
}

func (r *MemoryDraftRepository) SaveDraft(ctx context.Context, d model.DraftReply) error {
	if d.GuardrailStatus != model.GuardrailPassed {
		return ErrDraftNotPassed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Violations = append([]string(nil), d.Violations...)
	r.drafts = append(r.drafts, d)
	return nil
}

// Drafts returns a copy of the saved drafts.
func (r *MemoryDraftRepository) Drafts() []model.DraftReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DraftReply(nil), r.drafts...)
}
