package cartomesh

import (
	"sync"

	"github.com/LynnColeArt/cartomesh/diag"
	"github.com/LynnColeArt/cartomesh/substrate"
)

// resourceSet tracks every substrate.View a Descriptor has acquired so
// Close can release them all exactly once, the way the teacher's
// MemoryPool tracks every DevicePtr it has handed out so Context.Destroy
// can reclaim them all. Unlike the teacher's pool, views are never reused
// across descriptors — there is no free list here, only lifecycle
// bookkeeping.
type resourceSet struct {
	mu      sync.Mutex
	views   []substrate.View
	closed  bool
}

func newResourceSet() *resourceSet {
	return &resourceSet{}
}

// track registers v for release by a future Close. track ignores a nil
// view: nil is the legal "no halo on this face" sentinel and carries
// nothing to release.
func (r *resourceSet) track(v substrate.View) {
	if v == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		panic("cartomesh: track called on a closed resourceSet")
	}
	r.views = append(r.views, v)
}

// Close releases every tracked view exactly once. Close itself never
// returns an error — a release failure on one view must not prevent the
// rest from being attempted — individual failures are reported through
// diag.ReleaseFailed. Close is idempotent; calling it twice is a no-op on
// the second call.
func (r *resourceSet) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	views := r.views
	r.views = nil
	r.mu.Unlock()

	for _, v := range views {
		if err := v.Release(); err != nil {
			diag.ReleaseFailed("view", err)
		}
	}
}
