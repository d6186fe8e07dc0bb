package routing

import (
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/switchboard/pkg/audit"
)

// Stats is a point-in-time view of router activity.
type Stats struct {
	TotalRequests   int64                       `json:"total_requests"`
	ByStatus        map[audit.FinalStatus]int64 `json:"by_status"`
	ServedByBackend map[string]int64            `json:"served_by_backend"`
	Fallbacks       int64                       `json:"fallbacks"`
	CacheHits       int64                       `json:"cache_hits"`
	LastResetTime   time.Time                   `json:"last_reset_time"`
}

// atomicStats tracks router statistics with lock-free counters.
type atomicStats struct {
	totalRequests atomic.Int64

	// byStatus and servedBy map keys to *atomic.Int64
	byStatus sync.Map
	servedBy sync.Map

	// fallbacks counts successes that were not served by the first candidate
	fallbacks atomic.Int64
	cacheHits atomic.Int64

	lastResetTime time.Time
	mu            sync.RWMutex
}

func newAtomicStats() *atomicStats {
	return &atomicStats{lastResetTime: time.Now()}
}

func (s *atomicStats) record(ev *audit.Event) {
	s.totalRequests.Add(1)
	increment(&s.byStatus, string(ev.FinalStatus))

	if ev.CacheHit {
		s.cacheHits.Add(1)
		return
	}
	if ev.FinalStatus == audit.StatusSuccess {
		increment(&s.servedBy, ev.Backend)
		if len(ev.Attempts) > 1 {
			s.fallbacks.Add(1)
		}
	}
}

func increment(m *sync.Map, key string) {
	val, _ := m.LoadOrStore(key, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func (s *atomicStats) snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStatus := make(map[audit.FinalStatus]int64)
	s.byStatus.Range(func(key, value any) bool {
		byStatus[audit.FinalStatus(key.(string))] = value.(*atomic.Int64).Load()
		return true
	})

	servedBy := make(map[string]int64)
	s.servedBy.Range(func(key, value any) bool {
		servedBy[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return Stats{
		TotalRequests:   s.totalRequests.Load(),
		ByStatus:        byStatus,
		ServedByBackend: servedBy,
		Fallbacks:       s.fallbacks.Load(),
		CacheHits:       s.cacheHits.Load(),
		LastResetTime:   s.lastResetTime,
	}
}

func (s *atomicStats) reset() {
	s.totalRequests.Store(0)
	s.fallbacks.Store(0)
	s.cacheHits.Store(0)
	s.byStatus.Clear()
	s.servedBy.Clear()

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
