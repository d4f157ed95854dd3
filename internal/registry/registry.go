// Package registry maintains the fixed-capacity sensor slot table: slot
// allocation, handle minting, and lookup by handle or by sensor type
// (spec.md §4.1). It is the one place the manager's lock-free concurrent
// surface lives — registration and unregistration may be invoked from
// contexts other than the manager's event thread, so the table follows
// the handle-publishes-record idiom (spec.md Design Notes, "Publication
// ordering"): a slot's non-exported fields are written first, then its
// handle is published with an atomic store acting as the release fence; a
// reader's atomic load of the handle acts as the matching acquire.
//
// Grounded on the teacher's slot/descriptor-publication pattern in
// internal/queue/runner.go, adapted from a single queue's tag table to a
// bounded registry of independent sensors.
package registry

import (
	"sync/atomic"

	"github.com/sensorhub/sensormgr/internal/constants"
	"github.com/sensorhub/sensormgr/internal/dispatch"
	"github.com/sensorhub/sensormgr/internal/sensorstate"
	"github.com/sensorhub/sensormgr/internal/slab"
)

// SensorType tags a sensor's kind for findByType lookups (e.g. "accel",
// "baro"). The manager treats it as an opaque string.
type SensorType string

// Info is the immutable descriptor a driver supplies at registration:
// its type tag and its ascending list of supported discrete rates.
// Validated by the shared go-playground/validator instance when the
// manager registers a sensor (Manager.RegisterInProc/RegisterOutOfProc,
// SPEC_FULL.md §3): SupportedRates must be non-empty, every entry positive,
// and the list strictly ascending. Registry.Register itself does not
// validate.
type Info struct {
	Name           string           `validate:"required"`
	Type           SensorType       `validate:"required"`
	SupportedRates []constants.Rate `validate:"min=1,ascending,dive,gt=0"`
}

// Record is one live sensor slot. Info and CallInfo are installed once at
// registration and never change; State is owned by the statemachine
// package and mutated only from the manager's single-threaded event
// context, so it needs no synchronization of its own beyond the
// handle-publication fence that guards visibility of the whole record.
type Record struct {
	handle   atomic.Uint32
	Info     Info
	CallInfo dispatch.CallInfo
	State    sensorstate.State
}

// Handle returns the record's current handle (0 if retracted).
func (r *Record) Handle() uint32 { return r.handle.Load() }

// Registry is the bounded sensor slot table.
type Registry struct {
	arena      *slab.Arena[Record]
	nextHandle atomic.Uint32
}

// New builds a Registry with room for capacity sensors.
func New(capacity int) *Registry {
	return &Registry{arena: slab.NewArena[Record](capacity)}
}

// Cap returns the registry's fixed slot capacity.
func (g *Registry) Cap() int { return g.arena.Cap() }

// Register installs a new sensor and returns its handle, or 0 if the slot
// table is full. The descriptor, call info, and initial (off) state are
// written before the handle is published, so any reader that observes a
// non-zero handle also observes the fully initialized record.
func (g *Registry) Register(info Info, callInfo dispatch.CallInfo) uint32 {
	idx, slot, ok := g.arena.Alloc()
	if !ok {
		return 0
	}

	slot.Info = info
	slot.CallInfo = callInfo
	slot.State = sensorstate.OffState()

	handle := g.mintHandle()
	slot.handle.Store(handle) // publish: release

	_ = idx
	return handle
}

// mintHandle assigns the next process-wide 32-bit handle, skipping 0 and
// any value currently held by a live slot.
func (g *Registry) mintHandle() uint32 {
	for {
		h := g.nextHandle.Add(1)
		if h == 0 {
			continue // wrapped past the 32-bit counter; 0 is reserved
		}
		if !g.handleLive(h) {
			return h
		}
	}
}

func (g *Registry) handleLive(handle uint32) bool {
	live := false
	g.arena.Each(func(_ int, rec *Record) {
		if rec.handle.Load() == handle {
			live = true
		}
	})
	return live
}

// Unregister retracts handle's slot, returning false if the handle is not
// currently live. The handle is cleared before the slot is released back
// to the free bitset, so a concurrent reader either sees the full record
// or a miss, never a partially torn-down one.
func (g *Registry) Unregister(handle uint32) bool {
	if handle == 0 {
		return false
	}

	foundIdx := -1
	g.arena.Each(func(idx int, rec *Record) {
		if foundIdx == -1 && rec.handle.Load() == handle {
			foundIdx = idx
		}
	})
	if foundIdx == -1 {
		return false
	}

	rec := g.arena.At(foundIdx)
	rec.handle.Store(0) // retract: release
	g.arena.Free(foundIdx)
	return true
}

// FindByHandle returns the live record for handle, or nil. Handle 0 never
// matches.
func (g *Registry) FindByHandle(handle uint32) *Record {
	if handle == 0 {
		return nil
	}
	var found *Record
	g.arena.Each(func(_ int, rec *Record) {
		if found == nil && rec.handle.Load() == handle {
			found = rec
		}
	})
	return found
}

// FindByType returns the index-th live sensor of the given type, in slot
// order, along with its handle.
func (g *Registry) FindByType(t SensorType, index int) (Info, uint32, bool) {
	count := 0
	var info Info
	var handle uint32
	found := false
	g.arena.Each(func(_ int, rec *Record) {
		if found {
			return
		}
		h := rec.handle.Load()
		if h == 0 || rec.Info.Type != t {
			return
		}
		if count == index {
			info, handle, found = rec.Info, h, true
		}
		count++
	})
	return info, handle, found
}

// Each visits every live sensor's handle and record, in slot order. fn
// must not call Register or Unregister on the same registry.
func (g *Registry) Each(fn func(handle uint32, rec *Record)) {
	g.arena.Each(func(_ int, rec *Record) {
		if h := rec.handle.Load(); h != 0 {
			fn(h, rec)
		}
	})
}
