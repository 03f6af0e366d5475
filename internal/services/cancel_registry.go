package services

import "sync"

// CancelRegistry tracks the cancel function of every export that is
// currently processing, so the cancel endpoint can reach a running job.
// Queued jobs are cancelled in the database directly and never appear here.
type CancelRegistry struct {
	mu     sync.Mutex
	active map[int]func()
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{active: make(map[int]func())}
}

// Register associates a running export with its cancel function.
func (r *CancelRegistry) Register(exportID int, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[exportID] = cancel
}

// Release removes an export once it settles. Idempotent.
func (r *CancelRegistry) Release(exportID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, exportID)
}

// Cancel fires the export's cancel function if it is still running.
// It reports whether a running export was found.
func (r *CancelRegistry) Cancel(exportID int) bool {
	r.mu.Lock()
	cancel, ok := r.active[exportID]
	delete(r.active, exportID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// ActiveCount returns how many exports are currently cancellable.
func (r *CancelRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
