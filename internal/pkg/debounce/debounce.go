// Package debounce collapses bursts of calls per key into one trailing call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer schedules fn once per key after window has passed without a new
// Call for that key. The value passed to fn is the one from the latest Call.
// Runs for the same key never overlap, and a run that has not started yet is
// skipped once a newer Call, Claim or Cancel for its key has been made.
type Debouncer[K comparable, V any] struct {
	window time.Duration
	fn     func(K, V)

	mu      sync.Mutex
	seq     uint64
	pending map[K]*call[V]
	keys    map[K]*keyState
	stopped bool
	running sync.WaitGroup
}

type call[V any] struct {
	timer *time.Timer
	value V
	seq   uint64
}

// keyState serializes the runs of one key. It is kept while a call is
// pending for the key or a run holds or waits for its lock.
type keyState struct {
	mu     sync.Mutex
	latest uint64
	refs   int
}

// Ticket is an immediate run claimed with Claim. Run must be called exactly
// once.
type Ticket[K comparable, V any] struct {
	d   *Debouncer[K, V]
	key K
	st  *keyState
	seq uint64
}

// New creates a debouncer with the given settling window
func New[K comparable, V any](window time.Duration, fn func(K, V)) *Debouncer[K, V] {
	return &Debouncer[K, V]{
		window:  window,
		fn:      fn,
		pending: make(map[K]*call[V]),
		keys:    make(map[K]*keyState),
	}
}

// Call records value for key and restarts the key's timer.
// It reports false once the debouncer has been stopped.
func (d *Debouncer[K, V]) Call(key K, value V) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	st := d.acquire(key)
	if prev, ok := d.pending[key]; ok {
		// the new call takes over the previous call's reference
		prev.timer.Stop()
		st.refs--
	}

	c := &call[V]{value: value, seq: d.next(st)}
	c.timer = time.AfterFunc(d.window, func() { d.fire(key, c) })
	d.pending[key] = c
	return true
}

// Claim drops the pending call for key and reserves an immediate run that is
// ordered after every run of key already started. It reports false once the
// debouncer has been stopped.
func (d *Debouncer[K, V]) Claim(key K) (*Ticket[K, V], bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return nil, false
	}

	st := d.acquire(key)
	if c, ok := d.pending[key]; ok {
		c.timer.Stop()
		delete(d.pending, key)
		st.refs--
	}

	d.running.Add(1)
	return &Ticket[K, V]{d: d, key: key, st: st, seq: d.next(st)}, true
}

// Run executes fn under the key's lock. fn is skipped, and Run reports
// false, when a newer Call or Claim for the key was made in the meantime.
func (t *Ticket[K, V]) Run(fn func()) bool {
	defer t.d.running.Done()
	return t.d.exec(t.key, t.st, t.seq, fn)
}

// Cancel drops the pending call for key, if any. Runs of key that have not
// started yet are skipped too.
func (d *Debouncer[K, V]) Cancel(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.keys[key]
	if !ok {
		return false
	}
	d.next(st)

	c, ok := d.pending[key]
	if !ok {
		return false
	}
	c.timer.Stop()
	delete(d.pending, key)
	d.release(key, st)
	return true
}

// Pending returns the number of keys waiting to fire
func (d *Debouncer[K, V]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Tracked returns the number of keys with a pending call or an active run
func (d *Debouncer[K, V]) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.keys)
}

// Flush runs every pending call now, in the caller's goroutine, and waits for
// runs already in flight.
func (d *Debouncer[K, V]) Flush() {
	type dueCall struct {
		key K
		c   *call[V]
		st  *keyState
	}

	d.mu.Lock()
	due := make([]dueCall, 0, len(d.pending))
	for key, c := range d.pending {
		c.timer.Stop()
		due = append(due, dueCall{key: key, c: c, st: d.keys[key]})
	}
	d.pending = make(map[K]*call[V])
	d.mu.Unlock()

	for _, x := range due {
		d.exec(x.key, x.st, x.c.seq, func() { d.fn(x.key, x.c.value) })
	}
	d.running.Wait()
}

// Stop drops pending calls, rejects new ones and waits for runs in flight
func (d *Debouncer[K, V]) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, c := range d.pending {
		c.timer.Stop()
		delete(d.pending, key)
		d.release(key, d.keys[key])
	}
	d.mu.Unlock()

	d.running.Wait()
}

func (d *Debouncer[K, V]) fire(key K, c *call[V]) {
	d.mu.Lock()
	if d.pending[key] != c {
		// superseded, canceled or flushed
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	st := d.keys[key]
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.exec(key, st, c.seq, func() { d.fn(key, c.value) })
}

// exec runs fn under the key lock if seq is still the latest for the key,
// then drops the caller's reference on the key state.
func (d *Debouncer[K, V]) exec(key K, st *keyState, seq uint64, fn func()) bool {
	st.mu.Lock()
	d.mu.Lock()
	current := st.latest == seq
	d.mu.Unlock()

	if current {
		fn()
	}
	st.mu.Unlock()

	d.mu.Lock()
	d.release(key, st)
	d.mu.Unlock()
	return current
}

// acquire returns the key's state with one more reference. d.mu must be held.
func (d *Debouncer[K, V]) acquire(key K) *keyState {
	st, ok := d.keys[key]
	if !ok {
		st = &keyState{}
		d.keys[key] = st
	}
	st.refs++
	return st
}

// release drops one reference and forgets the key once none are left.
// d.mu must be held.
func (d *Debouncer[K, V]) release(key K, st *keyState) {
	st.refs--
	if st.refs == 0 && d.keys[key] == st {
		delete(d.keys, key)
	}
}

// next marks a new latest sequence for the key. d.mu must be held.
func (d *Debouncer[K, V]) next(st *keyState) uint64 {
	d.seq++
	st.latest = d.seq
	return d.seq
}
