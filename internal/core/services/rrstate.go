package services

import (
	"hash/fnv"
	"sync"
)

const rrShardCount = 16

type rrShard struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// RoundRobinState holds the process-local fairness counters, sharded
// by cache key to keep contention low under concurrent routing. The
// counter is incremented on every selection, never reset, so the
// distribution stays even over time even when the candidate list
// changes length between calls.
type RoundRobinState struct {
	shards [rrShardCount]rrShard
}

func NewRoundRobinState() *RoundRobinState {
	s := &RoundRobinState{}
	for i := range s.shards {
		s.shards[i].counters = make(map[string]uint64)
	}
	return s
}

func (s *RoundRobinState) shard(key string) *rrShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%rrShardCount]
}

// Next returns counter mod n and advances the counter, atomically with
// respect to concurrent callers on the same key. Returns -1 when n is
// not positive; the index is always in [0, n) otherwise.
func (s *RoundRobinState) Next(key string, n int) int {
	if n <= 0 {
		return -1
	}
	sh := s.shard(key)
	sh.mu.Lock()
	c := sh.counters[key]
	sh.counters[key] = c + 1
	sh.mu.Unlock()
	return int(c % uint64(n))
}

// Peek returns the index Next would return without advancing the
// counter.
func (s *RoundRobinState) Peek(key string, n int) int {
	if n <= 0 {
		return -1
	}
	sh := s.shard(key)
	sh.mu.Lock()
	c := sh.counters[key]
	sh.mu.Unlock()
	return int(c % uint64(n))
}

// Invalidate discards the counter for a cache key. Callers must invoke
// this after any mutation that changes the shape of the candidate set
// for that key; the engine does not auto-detect config changes.
func (s *RoundRobinState) Invalidate(key string) {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.counters, key)
	sh.mu.Unlock()
}
