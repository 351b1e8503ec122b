package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	var counter int64
	For(1000, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, DefaultConfig())

	assert.Equal(t, int64(1000), counter)
}

func TestForRangeCoversDisjointChunks(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 2}
	seen := make([]int32, 17)
	var mu sync.Mutex
	var chunks int

	ForRange(len(seen), func(start, end int) {
		mu.Lock()
		chunks++
		mu.Unlock()
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
	assert.Greater(t, chunks, 1)
}

func TestForRangeSequential(t *testing.T) {
	calls := 0
	ForRange(100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 100, end)
	}, Sequential())
	assert.Equal(t, 1, calls)

	ForRange(0, func(_, _ int) { t.Fatal("called for empty range") }, DefaultConfig())
}

func TestForBatch(t *testing.T) {
	batch, rows := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, rows)
	}

	ForBatch(batch, rows, func(b, r int) {
		results[b][r] = true
	}, DefaultConfig())

	for b := 0; b < batch; b++ {
		for r := 0; r < rows; r++ {
			assert.True(t, results[b][r], "missing result at [%d][%d]", b, r)
		}
	}
}
