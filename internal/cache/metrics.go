package cache

import (
	"sync/atomic"
	"time"
)

type CacheMetrics struct {
	L1Hits    int64 `json:"l1_hits"`
	L2Hits    int64 `json:"l2_hits"`
	Misses    int64 `json:"misses"`
	Errors    int64 `json:"errors"`
	Sets      int64 `json:"sets"`
	Deletes   int64 `json:"deletes"`
	StartTime int64 `json:"start_time"`
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		StartTime: time.Now().Unix(),
	}
}

func (m *CacheMetrics) RecordL1Hit() { atomic.AddInt64(&m.L1Hits, 1) }
func (m *CacheMetrics) RecordL2Hit() { atomic.AddInt64(&m.L2Hits, 1) }
func (m *CacheMetrics) RecordMiss() { atomic.AddInt64(&m.Misses, 1) }
func (m *CacheMetrics) RecordError() { atomic.AddInt64(&m.Errors, 1) }
func (m *CacheMetrics) RecordSet() { atomic.AddInt64(&m.Sets, 1) }
func (m *CacheMetrics) RecordDelete() { atomic.AddInt64(&m.Deletes, 1) }

func (m *CacheMetrics) Snapshot() CacheMetrics {
	return CacheMetrics{
		L1Hits:    atomic.LoadInt64(&m.L1Hits),
		L2Hits:    atomic.LoadInt64(&m.L2Hits),
		Misses:    atomic.LoadInt64(&m.Misses),
		Errors:    atomic.LoadInt64(&m.Errors),
		Sets:      atomic.LoadInt64(&m.Sets),
		Deletes:   atomic.LoadInt64(&m.Deletes),
		StartTime: m.StartTime,
	}
}

// HitRate is the percentage of lookups served by either level.
func (m *CacheMetrics) HitRate() float64 {
	hits := atomic.LoadInt64(&m.L1Hits) + atomic.LoadInt64(&m.L2Hits)
	total := hits + atomic.LoadInt64(&m.Misses)

	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}
