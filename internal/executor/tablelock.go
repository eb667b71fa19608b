package executor

import "sync"

// tableLocks is a per-target-table advisory lock: the scheduler holds it
// around each Load and Transform handler call, ensuring no two concurrent
// writers touch
// the same table (spec §9 Open Question: "the spec requires no two
// concurrent writes to the same table").
type tableLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTableLocks() *tableLocks {
	return &tableLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the advisory lock for table and returns a func that
// releases it.
func (t *tableLocks) lock(table string) func() {
	t.mu.Lock()
	m, ok := t.locks[table]

	if !ok {
		m = &sync.Mutex{}
		t.locks[table] = m
	}

	t.mu.Unlock()

	m.Lock()

	return m.Unlock
}
