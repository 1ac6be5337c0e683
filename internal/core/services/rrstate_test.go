package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundRobin_CyclesInOrder(t *testing.T) {
	rr := NewRoundRobinState()

	got := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		got = append(got, rr.Next("pool", 3))
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, got)
}

func TestRoundRobin_EmptyCandidateSet(t *testing.T) {
	rr := NewRoundRobinState()

	assert.Equal(t, -1, rr.Next("pool", 0))
	assert.Equal(t, -1, rr.Next("pool", -1))
	assert.Equal(t, -1, rr.Peek("pool", 0))
}

func TestRoundRobin_PeekDoesNotAdvance(t *testing.T) {
	rr := NewRoundRobinState()

	assert.Equal(t, 0, rr.Peek("pool", 3))
	assert.Equal(t, 0, rr.Peek("pool", 3))
	assert.Equal(t, 0, rr.Next("pool", 3))
	assert.Equal(t, 1, rr.Peek("pool", 3))
}

func TestRoundRobin_Invalidate(t *testing.T) {
	rr := NewRoundRobinState()

	rr.Next("pool", 3)
	rr.Next("pool", 3)
	rr.Invalidate("pool")
	assert.Equal(t, 0, rr.Next("pool", 3))
}

func TestRoundRobin_IndependentKeys(t *testing.T) {
	rr := NewRoundRobinState()

	assert.Equal(t, 0, rr.Next("a", 2))
	assert.Equal(t, 0, rr.Next("b", 2))
	assert.Equal(t, 1, rr.Next("a", 2))
}

// With M selections over K candidates every candidate is picked either
// floor(M/K) or ceil(M/K) times, even under concurrency.
func TestRoundRobin_FairnessUnderConcurrency(t *testing.T) {
	rr := NewRoundRobinState()

	const (
		workers  = 8
		perW     = 125
		total    = workers * perW // 1000
		poolSize = 3
	)

	var mu sync.Mutex
	counts := make(map[int]int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			local := make(map[int]int)
			for i := 0; i < perW; i++ {
				idx := rr.Next("shared", poolSize)
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, poolSize)
				local[idx]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	floor := total / poolSize
	ceil := floor + 1
	for i := 0; i < poolSize; i++ {
		assert.GreaterOrEqual(t, counts[i], floor, "candidate %d under-selected", i)
		assert.LessOrEqual(t, counts[i], ceil, "candidate %d over-selected", i)
	}
}
