// ABOUTME: Write-once, concurrent-read store mapping task id to TaskResult
// ABOUTME: Writers are exclusive; readers never block and always get a defensive copy

package resultstore

import (
	"fmt"
	"sync"

	"github.com/taskerd/tasker/pkg/types"
)

// Store implements types.ResultStore. A task id may be written exactly
// once; Put on an already-written id panics, since that would mean two
// executors raced to finish the same task — a programming error, not a
// runtime condition this engine tolerates.
type Store struct {
	mu      sync.RWMutex
	results map[int]*types.TaskResult
}

// New creates an empty result store.
func New() *Store {
	return &Store{results: make(map[int]*types.TaskResult)}
}

// Put stores result for taskID. Panics if taskID already has a result.
func (s *Store) Put(taskID int, result *types.TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[taskID]; exists {
		panic(fmt.Sprintf("resultstore: task %d already has a stored result", taskID))
	}
	s.results[taskID] = result.Snapshot()
}

// Get returns a defensive snapshot of the result for taskID.
func (s *Store) Get(taskID int) (*types.TaskResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[taskID]
	if !ok {
		return nil, false
	}
	return r.Snapshot(), true
}

// All returns a snapshot of every stored result.
func (s *Store) All() map[int]*types.TaskResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]*types.TaskResult, len(s.results))
	for id, r := range s.results {
		out[id] = r.Snapshot()
	}
	return out
}

// Has reports whether taskID has a completed result, without copying it.
func (s *Store) Has(taskID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[taskID]
	return ok
}
