// Package telemetry collects query pattern metrics for search tuning.
// All data stays in memory and local; nothing is reported externally.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent represents a single search query for telemetry recording.
type QueryEvent struct {
	Query       string
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// hashQuery hashes query text so metrics never retain raw queries.
func hashQuery(q string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(q))))
	return hex.EncodeToString(sum[:8])
}

// Snapshot is a point-in-time view of collected metrics.
type Snapshot struct {
	TotalQueries   int
	ZeroResults    int
	LatencyBuckets map[LatencyBucket]int
	RecentZeroHit  []string // hashed queries that returned nothing
	AverageResults float64
}

// QueryMetrics accumulates query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	total       int
	zeroResults int
	resultSum   int
	buckets     map[LatencyBucket]int
	recentZero  []string
	maxZeroKept int
}

// NewQueryMetrics creates an empty collector.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		buckets:     make(map[LatencyBucket]int),
		maxZeroKept: 100,
	}
}

// Record adds one query event.
func (m *QueryMetrics) Record(e QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.resultSum += e.ResultCount
	m.buckets[LatencyToBucket(e.Latency)]++

	if e.IsZeroResult() {
		m.zeroResults++
		m.recentZero = append(m.recentZero, hashQuery(e.Query))
		if len(m.recentZero) > m.maxZeroKept {
			m.recentZero = m.recentZero[len(m.recentZero)-m.maxZeroKept:]
		}
	}
}

// Snapshot returns a copy of the current metrics.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	buckets := make(map[LatencyBucket]int, len(m.buckets))
	for k, v := range m.buckets {
		buckets[k] = v
	}
	recent := make([]string, len(m.recentZero))
	copy(recent, m.recentZero)

	var avg float64
	if m.total > 0 {
		avg = float64(m.resultSum) / float64(m.total)
	}

	return Snapshot{
		TotalQueries:   m.total,
		ZeroResults:    m.zeroResults,
		LatencyBuckets: buckets,
		RecentZeroHit:  recent,
		AverageResults: avg,
	}
}
