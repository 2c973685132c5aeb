package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetReadConcurrencyRestore(t *testing.T) {
	restore := SetReadConcurrency(2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	inflight, peak := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := acquireRead()
			defer release()

			mu.Lock()
			inflight++
			if inflight > peak {
				peak = inflight
			}
			mu.Unlock()

			mu.Lock()
			inflight--
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, peak, 2)

	restore()
	// Restoring twice is a no-op.
	restore()

	release := acquireRead()
	release()
}
