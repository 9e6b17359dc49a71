package testkit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/ports"
)

// TestKit bundles in-memory adapters for app-level tests
type TestKit struct {
	ledger   *InMemoryLedgerAdapter
	matrices *InMemoryMatrixRepository
}

// NewTestKit creates a test kit with empty stores
func NewTestKit() *TestKit {
	return &TestKit{
		ledger:   NewInMemoryLedgerAdapter(),
		matrices: NewInMemoryMatrixRepository(),
	}
}

// RNGAdapter returns a deterministic RNG port
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return &RNGAdapter{}
}

// LedgerAdapter returns the shared in-memory ledger
func (t *TestKit) LedgerAdapter() *InMemoryLedgerAdapter {
	return t.ledger
}

// MatrixRepository returns the shared in-memory matrix store
func (t *TestKit) MatrixRepository() *InMemoryMatrixRepository {
	return t.matrices
}

// RNGAdapter implements the RNGPort interface for testing
type RNGAdapter struct{}

// Stream creates a deterministic RNG stream for a repetition/configuration pair
func (r *RNGAdapter) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	seed := uint64(baseSeed)
	if runID != "" {
		seed += uint64(hashString(runID))
	}
	return rand.New(rand.NewPCG(seed, uint64(hashString(stageName+"/"+key)))), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}

// InMemoryMatrixRepository implements MatrixRepository with a map
type InMemoryMatrixRepository struct {
	matrices map[string]*experiment.DetectionMatrix
	mu       sync.RWMutex
}

func NewInMemoryMatrixRepository() *InMemoryMatrixRepository {
	return &InMemoryMatrixRepository{matrices: make(map[string]*experiment.DetectionMatrix)}
}

func (r *InMemoryMatrixRepository) Save(ctx context.Context, name string, matrix *experiment.DetectionMatrix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matrices[name] = matrix
	return nil
}

func (r *InMemoryMatrixRepository) Load(ctx context.Context, name string) (*experiment.DetectionMatrix, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matrices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrMatrixNotFound, name)
	}
	return m, nil
}

func (r *InMemoryMatrixRepository) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.matrices))
	for name := range r.matrices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *InMemoryMatrixRepository) Path(name string) string {
	return "mem://" + name
}

// InMemoryLedgerAdapter implements LedgerPort with in-memory storage
type InMemoryLedgerAdapter struct {
	runs     map[core.RunID]*ports.RunRecord
	order    []core.RunID
	results  map[core.RunID][]ports.ConfigResult
	matrices map[core.RunID][]string
	recorded map[matrixKey]struct{}
	mu       sync.RWMutex
}

type matrixKey struct {
	name        string
	fingerprint core.Hash
}

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{
		runs:     make(map[core.RunID]*ports.RunRecord),
		results:  make(map[core.RunID][]ports.ConfigResult),
		matrices: make(map[core.RunID][]string),
		recorded: make(map[matrixKey]struct{}),
	}
}

func (s *InMemoryLedgerAdapter) CreateRun(ctx context.Context, run ports.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	s.runs[run.ID] = &run
	s.order = append(s.order, run.ID)
	return nil
}

func (s *InMemoryLedgerAdapter) RecordConfig(ctx context.Context, result ports.ConfigResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[result.RunID]; !exists {
		return core.NewNotFoundError("run", result.RunID.String())
	}
	s.results[result.RunID] = append(s.results[result.RunID], result)
	return nil
}

func (s *InMemoryLedgerAdapter) RecordMatrix(ctx context.Context, runID core.RunID, repetition int, name string, fingerprint core.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[runID]; !exists {
		return core.NewNotFoundError("run", runID.String())
	}
	s.matrices[runID] = append(s.matrices[runID], name)
	s.recorded[matrixKey{name, fingerprint}] = struct{}{}
	return nil
}

func (s *InMemoryLedgerAdapter) FinishRun(ctx context.Context, runID core.RunID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, exists := s.runs[runID]
	if !exists {
		return core.NewNotFoundError("run", runID.String())
	}
	run.Status = status
	run.FinishedAt = core.Now()
	return nil
}

func (s *InMemoryLedgerAdapter) ListRuns(ctx context.Context, limit int) ([]ports.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ports.RunRecord
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.runs[s.order[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryLedgerAdapter) GetRun(ctx context.Context, runID core.RunID) (*ports.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, exists := s.runs[runID]
	if !exists {
		return nil, core.NewNotFoundError("run", runID.String())
	}
	cp := *run
	return &cp, nil
}

func (s *InMemoryLedgerAdapter) GetConfigResults(ctx context.Context, runID core.RunID) ([]ports.ConfigResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, exists := s.runs[runID]; !exists {
		return nil, core.NewNotFoundError("run", runID.String())
	}
	return append([]ports.ConfigResult(nil), s.results[runID]...), nil
}

func (s *InMemoryLedgerAdapter) MatrixRecorded(ctx context.Context, name string, fingerprint core.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.recorded[matrixKey{name, fingerprint}]
	return ok, nil
}

// MatrixNames returns the matrices recorded for a run in recording order
func (s *InMemoryLedgerAdapter) MatrixNames(runID core.RunID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.matrices[runID]...)
}
