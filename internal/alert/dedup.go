package alert

import (
	"sync"
	"time"
)

const (
	// DefaultDedupCapacity is the key-set size that triggers a purge.
	DefaultDedupCapacity = 50
	// DefaultDedupMaxAge is how long a delivered key stays purgeable-proof.
	DefaultDedupMaxAge = 5 * time.Minute
)

type dedupKey struct {
	kind      Kind
	sessionID int64
	bucket    int64 // minute bucket: floor(unix seconds / 60)
}

// Dedup suppresses re-delivery of the same alert within the same minute
// bucket. A boundary's due window is one to two minutes wide, so each alert
// reaches the deduplicator at most twice; the first sighting is delivered,
// later ones inside the same bucket are dropped. State is process-local and
// lost on restart.
//
// Memory is bounded: once the key set grows past capacity, keys older than
// maxAge are purged. Keys inside the active window are never purged because
// maxAge always exceeds the due window.
type Dedup struct {
	mu       sync.Mutex
	seen     map[dedupKey]struct{}
	capacity int
	maxAge   time.Duration
}

// NewDedup builds a deduplicator. Non-positive arguments fall back to the
// defaults.
func NewDedup(capacity int, maxAge time.Duration) *Dedup {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	if maxAge <= 0 {
		maxAge = DefaultDedupMaxAge
	}
	return &Dedup{
		seen:     make(map[dedupKey]struct{}),
		capacity: capacity,
		maxAge:   maxAge,
	}
}

// Deliver records the alert for the current minute bucket and reports whether
// it should be surfaced: true on first sighting, false on repeats within the
// bucket.
func (d *Dedup) Deliver(kind Kind, sessionID int64, now time.Time) bool {
	key := dedupKey{kind: kind, sessionID: sessionID, bucket: now.Unix() / 60}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}

	if len(d.seen) > d.capacity {
		d.purgeLocked(key.bucket)
	}
	return true
}

// Filter returns the alerts not yet delivered, preserving order.
func (d *Dedup) Filter(alerts []Alert, now time.Time) []Alert {
	var fresh []Alert
	for _, a := range alerts {
		if d.Deliver(a.Kind, a.Session.ID, now) {
			fresh = append(fresh, a)
		}
	}
	return fresh
}

// Len reports the current key-set size.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// purgeLocked drops keys older than maxAge buckets. Caller holds d.mu.
func (d *Dedup) purgeLocked(nowBucket int64) {
	maxAgeBuckets := int64(d.maxAge / time.Minute)
	for key := range d.seen {
		if nowBucket-key.bucket > maxAgeBuckets {
			delete(d.seen, key)
		}
	}
}
