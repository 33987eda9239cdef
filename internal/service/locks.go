package service

import "sync"

// opLocks serializes named engine operations within the process. SQLite has
// no advisory locks, so check-then-act sequences (rota generation, coverage
// request creation) take a named mutex instead. One engine process owns the
// database file, which makes process-local locking sufficient.
var opLocks = struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}{locks: make(map[string]*sync.Mutex)}

// lockOp acquires the named operation lock and returns its release func.
func lockOp(name string) func() {
	opLocks.mu.Lock()
	l, ok := opLocks.locks[name]
	if !ok {
		l = &sync.Mutex{}
		opLocks.locks[name] = l
	}
	opLocks.mu.Unlock()

	l.Lock()
	return l.Unlock
}
