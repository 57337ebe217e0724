package metrics

import (
	"sync"
	"time"

	"crypto-market-feed/internal/logger"
)

// Tracker counts feed activity and times normalization passes.
type Tracker struct {
	mu sync.Mutex

	logEvery   int
	batchCount int
	startTime  time.Time

	minTime   time.Duration
	maxTime   time.Duration
	totalTime time.Duration

	streamBatches       int64
	streamParseFailures int64
	droppedRecords      int64
	connects            int64
	disconnects         int64
	pollSuccesses       int64
	pollFailures        int64
	fallbackServed      int64
	lastBatchRecords    int
}

// Snapshot is a point-in-time copy of the tracker, shaped for JSON.
type Snapshot struct {
	StreamBatches       int64  `json:"streamBatches"`
	StreamParseFailures int64  `json:"streamParseFailures"`
	DroppedRecords      int64  `json:"droppedRecords"`
	Connects            int64  `json:"connects"`
	Disconnects         int64  `json:"disconnects"`
	PollSuccesses       int64  `json:"pollSuccesses"`
	PollFailures        int64  `json:"pollFailures"`
	FallbackServed      int64  `json:"fallbackServed"`
	LastBatchRecords    int    `json:"lastBatchRecords"`
	MinBatchMicros      int64  `json:"minBatchMicros"`
	MaxBatchMicros      int64  `json:"maxBatchMicros"`
	AvgBatchMicros      int64  `json:"avgBatchMicros"`
	Uptime              string `json:"uptime"`
}

// NewTracker logs a summary every logEvery batches; 0 disables the summary.
func NewTracker(logEvery int) *Tracker {
	return &Tracker{
		logEvery:  logEvery,
		startTime: time.Now(),
		minTime:   time.Duration(1<<63 - 1),
	}
}

func (t *Tracker) TrackBatch(duration time.Duration, records, dropped int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.streamBatches++
	t.batchCount++
	t.droppedRecords += int64(dropped)
	t.lastBatchRecords = records
	t.totalTime += duration

	if duration < t.minTime {
		t.minTime = duration
	}
	if duration > t.maxTime {
		t.maxTime = duration
	}

	if t.logEvery > 0 && t.batchCount >= t.logEvery {
		logger.Info("Stream batch metrics",
			"batches", t.streamBatches,
			"records", records,
			"dropped_total", t.droppedRecords,
			"min_us", t.minTime.Microseconds(),
			"max_us", t.maxTime.Microseconds(),
			"avg_us", t.avgLocked().Microseconds(),
		)
		t.batchCount = 0
	}
}

func (t *Tracker) TrackParseFailure() {
	t.mu.Lock()
	t.streamParseFailures++
	t.mu.Unlock()
}

func (t *Tracker) TrackConnect() {
	t.mu.Lock()
	t.connects++
	t.mu.Unlock()
}

func (t *Tracker) TrackDisconnect() {
	t.mu.Lock()
	t.disconnects++
	t.mu.Unlock()
}

func (t *Tracker) TrackPoll(ok bool, dropped int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.pollSuccesses++
		t.droppedRecords += int64(dropped)
		return
	}
	t.pollFailures++
}

// TrackFallbackServed counts sample datasets that actually reached the store.
func (t *Tracker) TrackFallbackServed() {
	t.mu.Lock()
	t.fallbackServed++
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		StreamBatches:       t.streamBatches,
		StreamParseFailures: t.streamParseFailures,
		DroppedRecords:      t.droppedRecords,
		Connects:            t.connects,
		Disconnects:         t.disconnects,
		PollSuccesses:       t.pollSuccesses,
		PollFailures:        t.pollFailures,
		FallbackServed:      t.fallbackServed,
		LastBatchRecords:    t.lastBatchRecords,
		Uptime:              time.Since(t.startTime).Round(time.Second).String(),
	}
	if t.streamBatches > 0 {
		s.MinBatchMicros = t.minTime.Microseconds()
		s.MaxBatchMicros = t.maxTime.Microseconds()
		s.AvgBatchMicros = t.avgLocked().Microseconds()
	}
	return s
}

func (t *Tracker) avgLocked() time.Duration {
	if t.streamBatches == 0 {
		return 0
	}
	return t.totalTime / time.Duration(t.streamBatches)
}
