package chain

import "sync"

// Metrics is a short-mutex, non-suspending counter block tracking one
// chain's append/commit/rejection/replay/compaction activity. Grounded on
// statemanager.Manager's operation-tracking pattern, generalized from a
// per-operation map keyed by caller-supplied IDs to plain running totals
// (a chain has no equivalent of Manager's HTTP-exposed per-request detail,
// since the core carries no HTTP surface).
type Metrics struct {
	mu sync.Mutex

	appends     uint64
	commits     uint64
	replays     uint64
	compactions uint64
	rejects     map[string]uint64
}

// NewMetrics returns a zeroed Metrics block.
func NewMetrics() *Metrics {
	return &Metrics{rejects: make(map[string]uint64)}
}

// RecordAppend counts one successful single-event Feed.
func (m *Metrics) RecordAppend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
}

// RecordCommit counts one successful FeedBatch.
func (m *Metrics) RecordCommit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
}

// RecordReject counts one pipeline rejection, bucketed by stage name
// ("plugin", "validator", or "commit" for any other rejection).
func (m *Metrics) RecordReject(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects[stage]++
}

// RecordReplay counts one completed Pipeline.Replay pass.
func (m *Metrics) RecordReplay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays++
}

// RecordCompaction counts one completed Pipeline.Compact pass.
func (m *Metrics) RecordCompaction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compactions++
}

// Snapshot is a point-in-time copy of a Metrics block, safe to read
// without holding any lock.
type Snapshot struct {
	Appends     uint64
	Commits     uint64
	Replays     uint64
	Compactions uint64
	Rejects     map[string]uint64
}

// Snapshot copies the current counters out. Never suspends: callers may
// call it from within a held inside_sync or inside_async lock.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	rejects := make(map[string]uint64, len(m.rejects))
	for k, v := range m.rejects {
		rejects[k] = v
	}
	return Snapshot{
		Appends:     m.appends,
		Commits:     m.commits,
		Replays:     m.replays,
		Compactions: m.compactions,
		Rejects:     rejects,
	}
}

// Throttle is a short-mutex contention gauge: an exponentially-weighted
// moving average of dirty-lock-contention warnings (a mutable Handle's
// first write finding the key already locked, see dio.Handle.Mutate),
// used to decide whether a chain is hot enough to warrant logging at a
// lower rate or surfacing backpressure to a caller. It never blocks and
// never performs I/O, matching spec's "metrics(), throttle() ... never
// suspend" rule.
type Throttle struct {
	mu    sync.Mutex
	decay float64
	level float64
	hits  uint64
}

// NewThrottle returns a Throttle with a decay rate tuned so a burst of
// contention decays to half its weight over roughly five observations.
func NewThrottle() *Throttle {
	return &Throttle{decay: 0.13}
}

// RecordContention registers one dirty-lock-contention warning.
func (t *Throttle) RecordContention() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hits++
	t.level = t.level*(1-t.decay) + t.decay
}

// Tick decays the current level by one step without registering a new
// warning. Callers poll this on a schedule of their own choosing; the
// Throttle itself owns no timer or goroutine.
func (t *Throttle) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.level *= 1 - t.decay
}

// Level returns the current contention gauge in [0, 1).
func (t *Throttle) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

// Hits returns the total number of contention warnings ever recorded.
func (t *Throttle) Hits() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits
}
