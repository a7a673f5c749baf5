// Package strategies keeps a local copy of the user's strategies in sync
// with the backend across list, create, update and delete calls.
package strategies

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/newthinker/stratdesk/internal/core"
	"github.com/newthinker/stratdesk/internal/form"
	"github.com/newthinker/stratdesk/internal/metrics"
	"go.uber.org/zap"
)

// API is the subset of the backend client the store needs.
type API interface {
	ListStrategies(ctx context.Context) ([]core.Strategy, error)
	GetStrategy(ctx context.Context, id int) (*core.Strategy, error)
	CreateStrategy(ctx context.Context, in core.StrategyInput) (*core.Strategy, error)
	UpdateStrategy(ctx context.Context, id int, in core.StrategyInput) (*core.Strategy, error)
	DeleteStrategy(ctx context.Context, id int) error
}

// Snapshot is a point-in-time copy of the store state.
type Snapshot struct {
	Strategies []core.Strategy
	Loading    bool
	Err        error
}

// Store holds the strategy list, a loading flag and the last error.
type Store struct {
	api     API
	logger  *zap.Logger
	metrics *metrics.Registry

	mu         sync.RWMutex
	strategies []core.Strategy
	pending    int
	err        error
}

// New creates a store. reg may be nil.
func New(api API, logger *zap.Logger, reg *metrics.Registry) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:        api,
		logger:     logger,
		metrics:    reg,
		strategies: []core.Strategy{},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Strategies: slices.Clone(s.strategies),
		Loading:    s.pending > 0,
		Err:        s.err,
	}
}

// Strategies returns a copy of the local list.
func (s *Store) Strategies() []core.Strategy {
	return s.Snapshot().Strategies
}

// Loading reports whether a request is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// Err returns the error recorded by the last failed operation, nil after a success.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Find looks up a strategy in the local list.
func (s *Store) Find(id int) (core.Strategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Strategy{}, false
	}
	return s.strategies[i], true
}

// Search returns local strategies whose name or description contains query,
// case-insensitively. An empty query returns everything.
func (s *Store) Search(query string) []core.Strategy {
	q := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []core.Strategy{}
	for _, st := range s.strategies {
		if q == "" ||
			strings.Contains(strings.ToLower(st.Name), q) ||
			strings.Contains(strings.ToLower(st.Description), q) {
			out = append(out, st)
		}
	}
	return out
}

// Fetch replaces the local list with the backend's. On failure the list is kept.
func (s *Store) Fetch(ctx context.Context) error {
	s.begin()
	list, err := s.api.ListStrategies(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if err != nil {
		s.fail("fetch", err)
		return err
	}
	s.err = nil
	s.strategies = slices.Clone(list)
	sort.SliceStable(s.strategies, func(i, j int) bool { return s.strategies[i].ID < s.strategies[j].ID })
	s.recordSize()
	return nil
}

// Get fetches one strategy and refreshes or inserts it in the local list.
func (s *Store) Get(ctx context.Context, id int) (*core.Strategy, error) {
	s.begin()
	st, err := s.api.GetStrategy(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if err != nil {
		s.fail("get", err)
		return nil, err
	}
	s.err = nil
	s.upsert(*st)
	return st, nil
}

// Create validates in, stores it on the backend and appends the result.
func (s *Store) Create(ctx context.Context, in core.StrategyInput) (*core.Strategy, error) {
	if err := validateInput(in); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.begin()
	created, err := s.api.CreateStrategy(ctx, in)
	s.recordMutation("create", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if err != nil {
		s.fail("create", err)
		return nil, err
	}
	s.err = nil
	s.strategies = append(s.strategies, *created)
	s.recordSize()
	return created, nil
}

// Update validates in, updates the backend record and replaces the local element with that id.
func (s *Store) Update(ctx context.Context, id int, in core.StrategyInput) (*core.Strategy, error) {
	if err := validateInput(in); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.begin()
	updated, err := s.api.UpdateStrategy(ctx, id, in)
	s.recordMutation("update", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if err != nil {
		s.fail("update", err)
		return nil, err
	}
	s.err = nil
	if i := s.indexOf(id); i >= 0 {
		s.strategies[i] = *updated
	}
	return updated, nil
}

// Delete removes a strategy on the backend and from the local list.
func (s *Store) Delete(ctx context.Context, id int) error {
	s.begin()
	err := s.api.DeleteStrategy(ctx, id)
	s.recordMutation("delete", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if err != nil {
		s.fail("delete", err)
		return err
	}
	s.err = nil
	s.strategies = slices.DeleteFunc(s.strategies, func(st core.Strategy) bool { return st.ID == id })
	s.recordSize()
	return nil
}

func (s *Store) begin() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// fail records err; caller holds mu.
func (s *Store) fail(op string, err error) {
	s.err = err
	s.logger.Warn("strategy operation failed", zap.String("op", op), zap.Error(err))
}

// upsert replaces or appends st; caller holds mu.
func (s *Store) upsert(st core.Strategy) {
	if i := s.indexOf(st.ID); i >= 0 {
		s.strategies[i] = st
		return
	}
	s.strategies = append(s.strategies, st)
	s.recordSize()
}

func (s *Store) indexOf(id int) int {
	return slices.IndexFunc(s.strategies, func(st core.Strategy) bool { return st.ID == id })
}

func (s *Store) recordMutation(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordStrategyMutation(op, err)
	}
}

func (s *Store) recordSize() {
	if s.metrics != nil {
		s.metrics.SetStrategiesLoaded(len(s.strategies))
	}
}

func validateInput(in core.StrategyInput) error {
	return form.NewStrategyForm(in).Check()
}
