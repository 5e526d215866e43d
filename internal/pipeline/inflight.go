package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Inflight coalesces concurrent requests for the same (operation, id) key and
// numbers every request so late completions can be recognised as stale.
type Inflight struct {
	group singleflight.Group

	mu  sync.Mutex
	seq map[string]uint64
}

// Ticket identifies one request for a key.
type Ticket struct {
	Key string
	Seq uint64
}

func NewInflight() *Inflight {
	return &Inflight{seq: map[string]uint64{}}
}

// Key builds the registry key of an operation on one entity.
func Key(op, id string) string {
	return op + ":" + id
}

// Begin registers a new request for key. Any ticket issued earlier for the
// same key becomes stale.
func (r *Inflight) Begin(key string) Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[key]++
	return Ticket{Key: key, Seq: r.seq[key]}
}

// Stale reports whether a newer request was started after t.
func (r *Inflight) Stale(t Ticket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq[t.Key] != t.Seq
}

// Do runs fn unless a call for key is already running, in which case it waits
// for and shares that result. ctx only bounds the wait of this caller.
func (r *Inflight) Do(ctx context.Context, key string, fn func() (any, error)) (v any, err error, shared bool) {
	ch := r.group.DoChan(key, fn)
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	}
}

// Forget makes the next Do for key start a fresh call even if one is running.
func (r *Inflight) Forget(key string) {
	r.group.Forget(key)
}
