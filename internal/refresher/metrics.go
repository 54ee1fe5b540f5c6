package refresher

import (
	"sync/atomic"
	"time"
)

type runMetrics struct {
	processed   int64
	failed      int64
	durationNs  int64
	startedAtNs int64
}

type runStats struct {
	Processed     int64
	Failed        int64
	RatePerSecond float64
	AvgDuration   time.Duration
	Uptime        time.Duration
}

func newRunMetrics() *runMetrics {
	return &runMetrics{
		startedAtNs: time.Now().UnixNano(),
	}
}

func (m *runMetrics) recordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.processed, 1)
	atomic.AddInt64(&m.durationNs, int64(duration))
}

func (m *runMetrics) recordFailure() {
	atomic.AddInt64(&m.failed, 1)
}

func (m *runMetrics) snapshot() runStats {
	processed := atomic.LoadInt64(&m.processed)
	failed := atomic.LoadInt64(&m.failed)
	durationNs := atomic.LoadInt64(&m.durationNs)
	startedAt := atomic.LoadInt64(&m.startedAtNs)

	uptime := time.Since(time.Unix(0, startedAt))

	rate := 0.0
	if secs := uptime.Seconds(); secs > 0 {
		rate = float64(processed) / secs
	}

	avg := time.Duration(0)
	if processed > 0 {
		avg = time.Duration(durationNs / processed)
	}

	return runStats{
		Processed:     processed,
		Failed:        failed,
		RatePerSecond: rate,
		AvgDuration:   avg,
		Uptime:        uptime,
	}
}
