// Package lockable provides a recursive mutex, the Go analog of the SVR
// library's SVR_LOCKABLE/SVR_LOCK/SVR_UNLOCK macros (a pthread mutex
// initialized with PTHREAD_MUTEX_RECURSIVE). Go's sync.Mutex has no
// recursive variant, so Lockable tracks the current holder goroutine and
// counts re-entrant acquisitions instead of blocking a goroutine against
// itself.
package lockable

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Lockable is a recursive mutex plus a condition variable for the same
// protected state, mirroring how SVR embeds SVR_LOCKABLE directly into a
// struct and pairs SVR_LOCK/SVR_LOCK_WAIT/SVR_UNLOCK around it.
type Lockable struct {
	mu     sync.Mutex
	cond   *sync.Cond
	holder int64 // goroutine id currently holding the lock, 0 if unlocked
	depth  int
}

// New returns a ready-to-use Lockable.
func New() *Lockable {
	l := &Lockable{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Lock acquires the lock. Calling Lock again from the goroutine that
// already holds it increments the recursion depth instead of deadlocking;
// Unlock must be called once per matching Lock.
func (l *Lockable) Lock() {
	gid := goroutineID()
	l.mu.Lock()
	if l.holder == gid {
		l.depth++
		l.mu.Unlock()
		return
	}
	for l.holder != 0 {
		l.cond.Wait()
	}
	l.holder = gid
	l.depth = 1
	l.mu.Unlock()
}

// Unlock releases one level of recursion. The final Unlock at depth 0 wakes
// any goroutines blocked in Lock or Wait.
func (l *Lockable) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != goroutineID() {
		panic("lockable: Unlock called by goroutine that does not hold the lock")
	}
	l.depth--
	if l.depth == 0 {
		l.holder = 0
		l.cond.Broadcast()
	}
}

// Wait releases the lock, as SVR_LOCK_WAIT releases the object's mutex
// while blocked on the condition, and reacquires it (at the original
// recursion depth) before returning. It must be called while holding the
// lock exactly once (depth == 1); waiting while recursively locked would
// strand other waiters since the lock would not actually become free.
func (l *Lockable) Wait() {
	gid := goroutineID()
	l.mu.Lock()
	if l.holder != gid {
		l.mu.Unlock()
		panic("lockable: Wait called by goroutine that does not hold the lock")
	}
	if l.depth != 1 {
		l.mu.Unlock()
		panic("lockable: Wait called while recursively locked")
	}
	l.holder = 0
	l.depth = 0
	l.cond.Broadcast() // let another Lock()er in while we wait
	l.cond.Wait()
	for l.holder != 0 {
		l.cond.Wait()
	}
	l.holder = gid
	l.depth = 1
	l.mu.Unlock()
}

// Signal wakes one goroutine blocked in Wait, mirroring pthread_cond_signal
// usage alongside SVR_LOCK_WAIT. Callers typically hold the lock when
// calling Signal so the wakeup observes a consistent state change.
func (l *Lockable) Signal() {
	l.mu.Lock()
	l.cond.Signal()
	l.mu.Unlock()
}

// Broadcast wakes all goroutines blocked in Wait.
func (l *Lockable) Broadcast() {
	l.mu.Lock()
	l.cond.Broadcast()
	l.mu.Unlock()
}

// goroutineID parses the numeric goroutine id out of runtime.Stack, the
// same trick net/http's httptest race-detector helpers use when no public
// API exposes it. It is used only to detect re-entrant Lock calls from the
// same goroutine; it is not a stable or documented runtime guarantee, but
// the format ("goroutine N [...]") has been unchanged since Go 1.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	b = bytes.TrimPrefix(b, []byte(prefix))
	idx := bytes.IndexByte(b, ' ')
	if idx < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(b[:idx]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
