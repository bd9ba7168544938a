// Package activemap holds the in-memory set of non-terminal triggers owned
// by this scheduler cell, indexed for cheap "who is due next" queries. It is
// the single shared mutable structure the spinner touches on every tick.
package activemap

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/schedule"
)

// State is what the map keeps for one trigger: enough of the trigger to
// recompute its next occurrence, plus checkpoint bookkeeping.
type State struct {
	Trigger    domain.Trigger
	NextDue    time.Time
	Dirty      bool
	Generation uint64
}

// dueItem is one entry in the heap, ordered by NextDue, then by id.
type dueItem struct {
	id      string
	nextDue time.Time
	index   int
}

type dueHeap []*dueItem

func (h dueHeap) Len() int            { return len(h) }
func (h dueHeap) Less(i, j int) bool {
	if h[i].nextDue.Equal(h[j].nextDue) {
		return h[i].id < h[j].id
	}
	return h[i].nextDue.Before(h[j].nextDue)
}
func (h dueHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *dueHeap) Push(x any)         { item := x.(*dueItem); item.index = len(*h); *h = append(*h, item) }
func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Map is the active trigger map. All methods serialize through a single
// writer mutex; read-mostly access is still routed through it to preserve
// the due-index/by-id invariants.
type Map struct {
	mu            sync.Mutex
	byID          map[string]*State
	due           dueHeap
	dueIndex      map[string]*dueItem
	generation    uint64
	fastForward   bool
}

// New constructs an empty active trigger map. fastForward controls whether
// Install computes a newly-installed recurring trigger's first occurrence
// from the trigger's CreatedAt (replaying missed firings) or from now.
func New(fastForward bool) *Map {
	return &Map{
		byID:        make(map[string]*State),
		dueIndex:    make(map[string]*dueItem),
		fastForward: fastForward,
	}
}

// Install computes the trigger's initial next-due instant and inserts it
// into both structures, replacing any entry already held for the same id.
// Returns domain.ErrNoFutureOccurrence if the schedule has nothing left to
// fire.
func (m *Map) Install(t domain.Trigger, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := now
	if t.Schedule != nil && t.Schedule.Kind == domain.RecurringSchedule {
		from = schedule.FastForwardFrom(m.fastForward, now, t.CreatedAt)
	}
	next, ok, err := schedule.NextAfter(t.Schedule, from)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoFutureOccurrence
	}

	m.generation++
	st := &State{Trigger: t, NextDue: next, Dirty: true, Generation: m.generation}
	m.byID[t.ID] = st
	if item, ok := m.dueIndex[t.ID]; ok {
		heap.Remove(&m.due, item.index)
		delete(m.dueIndex, t.ID)
	}
	m.pushDue(t.ID, next)
	return nil
}

// Update replaces the trigger snapshot for id in place without touching its
// position in the due index.
func (m *Map) Update(t domain.Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.byID[t.ID]
	if !ok {
		return
	}
	m.generation++
	st.Trigger = t
	st.Dirty = true
	st.Generation = m.generation
}

// Remove drops id from both structures.
func (m *Map) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *Map) removeLocked(id string) {
	delete(m.byID, id)
	if item, ok := m.dueIndex[id]; ok {
		heap.Remove(&m.due, item.index)
		delete(m.dueIndex, id)
	}
}

// Pause removes id from the due index (it stops being eligible to fire)
// while keeping its snapshot in the by-id map.
func (m *Map) Pause(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.dueIndex[id]; ok {
		heap.Remove(&m.due, item.index)
		delete(m.dueIndex, id)
	}
}

// Resume recomputes next_due from now and reinserts id into the due index.
func (m *Map) Resume(id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.byID[id]
	if !ok {
		return domain.ErrTriggerNotFound
	}
	next, okNext, err := schedule.NextAfter(st.Trigger.Schedule, now)
	if err != nil {
		return err
	}
	if !okNext {
		return domain.ErrNoFutureOccurrence
	}
	m.generation++
	st.NextDue = next
	st.Dirty = true
	st.Generation = m.generation
	m.pushDue(id, next)
	return nil
}

func (m *Map) pushDue(id string, next time.Time) {
	item := &dueItem{id: id, nextDue: next}
	m.dueIndex[id] = item
	heap.Push(&m.due, item)
}

// DueEntry is a snapshot handed to the spinner for one drained trigger.
type DueEntry struct {
	Trigger domain.Trigger
	FiredAt time.Time
}

// DrainDue atomically removes every entry with NextDue <= now, bounded by
// maxEntries, and returns their snapshots. Each drained trigger's next
// occurrence is computed and it is reinserted (or transitioned to Expired
// and dropped from the due index) before DrainDue returns.
func (m *Map) DrainDue(now time.Time, maxEntries int) []DueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []DueEntry
	var reinsert []dueItem
	for len(out) < maxEntries && m.due.Len() > 0 {
		next := m.due[0]
		if next.nextDue.After(now) {
			break
		}
		heap.Pop(&m.due)
		delete(m.dueIndex, next.id)

		st, ok := m.byID[next.id]
		if !ok {
			continue
		}
		out = append(out, DueEntry{Trigger: st.Trigger, FiredAt: st.NextDue})

		m.generation++
		st.Generation = m.generation
		st.Dirty = true

		if st.Trigger.Schedule != nil && st.Trigger.Schedule.IsLimited() {
			st.Trigger.Schedule.Remaining--
		}

		nextDue, okNext, err := schedule.NextAfter(st.Trigger.Schedule, st.NextDue)
		if err != nil || !okNext {
			st.Trigger.Status = domain.StatusExpired
			delete(m.byID, next.id)
			continue
		}
		st.NextDue = nextDue
		reinsert = append(reinsert, dueItem{id: next.id, nextDue: nextDue})
	}
	for _, item := range reinsert {
		m.pushDue(item.id, item.nextDue)
	}
	return out
}

// NextEarliestDue reports the NextDue of the soonest-due trigger, if any.
func (m *Map) NextEarliestDue() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.due.Len() == 0 {
		return time.Time{}, false
	}
	return m.due[0].nextDue, true
}

// Len reports how many triggers are currently tracked.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// CheckpointEntry is one row the checkpointer must flush to the store.
type CheckpointEntry struct {
	TriggerID string
	NextDue   time.Time
	Remaining int
	Status    domain.Status
	LastRanAt time.Time
}

// SnapshotDirty yields a batch for the checkpointer and clears the dirty
// flag on every entry whose generation has not advanced since the
// snapshot was taken (a concurrent mutation after the snapshot stays
// dirty for the next round).
func (m *Map) SnapshotDirty() []CheckpointEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CheckpointEntry
	for id, st := range m.byID {
		if !st.Dirty {
			continue
		}
		gen := st.Generation
		remaining := 0
		if st.Trigger.Schedule != nil {
			remaining = st.Trigger.Schedule.Remaining
		}
		lastRan := st.NextDue
		if st.Trigger.LastRanAt != nil {
			lastRan = *st.Trigger.LastRanAt
		}
		out = append(out, CheckpointEntry{
			TriggerID: id,
			NextDue:   st.NextDue,
			Remaining: remaining,
			Status:    st.Trigger.Status,
			LastRanAt: lastRan,
		})
		if st.Generation == gen {
			st.Dirty = false
		}
	}
	return out
}
