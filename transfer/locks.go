package transfer

import "sync"

// lockTable hands out one mutex per handle. Entries are dropped once no
// goroutine holds or waits on them.
type lockTable struct {
	mu    sync.Mutex
	locks map[Handle]*handleLock
}

type handleLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[Handle]*handleLock)}
}

// lock acquires the mutex for h and returns its release function.
func (t *lockTable) lock(h Handle) func() {
	t.mu.Lock()
	l, ok := t.locks[h]
	if !ok {
		l = &handleLock{}
		t.locks[h] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, h)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
