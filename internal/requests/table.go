// Package requests implements the bounded (sensorHandle, clientId) ->
// (rate, latency) request table (spec.md §4.3): a dense-scan set over a
// fixed pool, not a growable map, so its memory footprint is bounded by
// MAX_CLI_SENS_MATRIX_SZ regardless of client churn.
//
// Add and Delete follow the same publish/retract-with-fence idiom as the
// registry (spec.md Design Notes, "Publication ordering"): identity
// (handle, clientId) is written before payload (rate, latency) on Add, and
// payload is neutralized before a slot is released on Delete, so a
// concurrent aggregation scan never observes a half-written record.
package requests

import (
	"sync/atomic"

	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/slab"
)

// Record is one live (sensorHandle, clientId) -> (rate, latency) entry.
type Record struct {
	handle   atomic.Uint32
	clientID atomic.Uint32
	rate     atomic.Int32
	latency  atomic.Int32
}

// Handle returns the record's sensor handle.
func (r *Record) Handle() uint32 { return r.handle.Load() }

// ClientID returns the record's client id.
func (r *Record) ClientID() uint32 { return r.clientID.Load() }

// Rate returns the record's requested rate.
func (r *Record) Rate() constants.Rate { return constants.Rate(r.rate.Load()) }

// Latency returns the record's requested latency.
func (r *Record) Latency() constants.Latency { return constants.Latency(r.latency.Load()) }

// Table is the bounded client request pool.
type Table struct {
	arena *slab.Arena[Record]
}

// New builds a Table with room for capacity records.
func New(capacity int) *Table {
	return &Table{arena: slab.NewArena[Record](capacity)}
}

// Cap returns the table's fixed capacity.
func (t *Table) Cap() int { return t.arena.Cap() }

// Add allocates a record for (handle, clientID). Identity fields are
// published before the rate/latency payload. Returns false if the table is
// full.
func (t *Table) Add(handle, clientID uint32, rate constants.Rate, latency constants.Latency) bool {
	_, slot, ok := t.arena.Alloc()
	if !ok {
		return false
	}
	slot.handle.Store(handle)
	slot.clientID.Store(clientID)
	slot.rate.Store(int32(rate))
	slot.latency.Store(int32(latency))
	return true
}

// Get returns the first live record matching (handle, clientID).
func (t *Table) Get(handle, clientID uint32) (constants.Rate, constants.Latency, bool) {
	rec := t.find(handle, clientID)
	if rec == nil {
		return constants.RateOff, constants.LatencyInvalid, false
	}
	return rec.Rate(), rec.Latency(), true
}

// Amend updates the matching record's rate/latency in place. Returns false
// if no record matches.
func (t *Table) Amend(handle, clientID uint32, rate constants.Rate, latency constants.Latency) bool {
	rec := t.find(handle, clientID)
	if rec == nil {
		return false
	}
	rec.rate.Store(int32(rate))
	rec.latency.Store(int32(latency))
	return true
}

// Delete removes the matching record: rate/latency are neutralized before
// the slot is released, so a concurrent aggregation reading a slot that is
// still (transiently) marked live sees neutral values rather than stale
// ones. Returns false if no record matches.
func (t *Table) Delete(handle, clientID uint32) bool {
	idx := -1
	t.arena.Each(func(i int, rec *Record) {
		if idx == -1 && rec.handle.Load() == handle && rec.clientID.Load() == clientID {
			idx = i
		}
	})
	if idx == -1 {
		return false
	}

	rec := t.arena.At(idx)
	rec.rate.Store(int32(constants.RateOff))
	rec.latency.Store(int32(constants.LatencyInvalid))
	t.arena.Free(idx)
	return true
}

// Count reports how many live records match (handle, clientID); used to
// surface request stacking (spec.md §9 open question) to callers that care.
func (t *Table) Count(handle, clientID uint32) int {
	n := 0
	t.arena.Each(func(_ int, rec *Record) {
		if rec.handle.Load() == handle && rec.clientID.Load() == clientID {
			n++
		}
	})
	return n
}

// EachForSensor visits every live record for handle, in pool-index order
// (spec.md: "iteration order is pool-index order and not observable").
// Used by the aggregator to scan a sensor's outstanding requests.
func (t *Table) EachForSensor(handle uint32, fn func(rec *Record)) {
	t.arena.Each(func(_ int, rec *Record) {
		if rec.handle.Load() == handle {
			fn(rec)
		}
	})
}

func (t *Table) find(handle, clientID uint32) *Record {
	var found *Record
	t.arena.Each(func(_ int, rec *Record) {
		if found == nil && rec.handle.Load() == handle && rec.clientID.Load() == clientID {
			found = rec
		}
	})
	return found
}
