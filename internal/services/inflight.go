package services

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"feeledger/internal/core"
)

// InFlightGuard admits one mutation per fee record at a time. A second caller
// is rejected with core.ErrOperationInFlight instead of queued.
type InFlightGuard struct {
	mu   sync.Mutex
	sems map[core.ID]*semaphore.Weighted
}

func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{sems: make(map[core.ID]*semaphore.Weighted)}
}

// Acquire marks id busy. The returned release func must be called exactly once.
func (g *InFlightGuard) Acquire(id core.ID) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, ok := g.sems[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.sems[id] = sem
	}
	if !sem.TryAcquire(1) {
		return nil, core.ErrOperationInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			sem.Release(1)
			delete(g.sems, id)
		})
	}, nil
}

// Busy reports whether a mutation is outstanding for id.
func (g *InFlightGuard) Busy(id core.ID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sems[id]
	return ok
}
