package storage

import "sync"

// DefaultReadConcurrency caps concurrent range reads across all readers
// in the process.
const DefaultReadConcurrency = 32

var (
	limitMu sync.Mutex
	limit   = make(chan struct{}, DefaultReadConcurrency)
)

// SetReadConcurrency changes the process-wide read-concurrency limit and
// returns a function that restores the previous limit. Reads that are in
// flight when the limit changes keep the slot they already hold.
func SetReadConcurrency(n int) (restore func()) {
	if n < 1 {
		n = 1
	}
	limitMu.Lock()
	defer limitMu.Unlock()

	prev := cap(limit)
	limit = make(chan struct{}, n)
	var once sync.Once
	return func() {
		once.Do(func() {
			limitMu.Lock()
			defer limitMu.Unlock()
			limit = make(chan struct{}, prev)
		})
	}
}

func acquireRead() (release func()) {
	limitMu.Lock()
	slots := limit
	limitMu.Unlock()

	slots <- struct{}{}
	return func() { <-slots }
}
