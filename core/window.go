package core

import "sort"

// WindowCapacity is the number of outstanding probes tracked by a session.
const WindowCapacity = 1024

// Loss is a probe that left the window without being echoed.
type Loss struct {
	Seq    uint64
	SentAt uint64
}

// Window keeps the send time of every outstanding probe in a ring indexed by
// sequence modulo its capacity. A slot holding 0 is empty, so send times must
// be non-zero.
//
// Probes must be registered with consecutive sequence numbers starting at 0.
type Window struct {
	pending  []uint64
	basis    uint64
	next     uint64
	occupied int
}

// NewWindow creates a window able to track capacity outstanding probes.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = WindowCapacity
	}
	return &Window{
		pending: make([]uint64, capacity),
	}
}

func (w *Window) capacity() uint64 {
	return uint64(len(w.pending))
}

// Register stores a newly sent probe. If its slot still holds a probe from the
// previous lap, that probe is evicted and returned as a loss.
func (w *Window) Register(seq, sentAt uint64) (Loss, bool) {
	c := w.capacity()
	if seq >= w.basis+c {
		w.basis = (seq / c) * c
	}

	var (
		lost    Loss
		evicted bool
	)

	idx := seq % c
	if old := w.pending[idx]; old != 0 {
		lost = Loss{Seq: seq - c, SentAt: old}
		evicted = true
		w.occupied--
	}

	w.pending[idx] = sentAt
	w.occupied++
	w.next = seq + 1

	return lost, evicted
}

// Resolve clears the slot of an echoed probe and returns its send time.
// It reports false when seq is not an outstanding probe: never sent, already
// resolved, or already evicted by a newer probe.
func (w *Window) Resolve(seq uint64) (uint64, bool) {
	if seq >= w.next {
		return 0, false
	}

	c := w.capacity()

	var idx uint64
	switch {
	case seq >= w.basis && seq < w.basis+c:
		idx = seq - w.basis
	case seq < w.basis && seq+c >= w.basis && w.next-seq <= c:
		// sent before the last basis advance, slot not reused yet
		idx = seq + c - w.basis
	default:
		return 0, false
	}

	sentAt := w.pending[idx]
	if sentAt == 0 {
		return 0, false
	}

	w.pending[idx] = 0
	w.occupied--
	return sentAt, true
}

// Drain empties the window and returns every probe still outstanding, in
// sequence order.
func (w *Window) Drain() []Loss {
	c := w.capacity()

	var losses []Loss
	for i, sentAt := range w.pending {
		if sentAt == 0 {
			continue
		}
		seq := w.basis + uint64(i)
		if seq >= w.next {
			seq -= c
		}
		losses = append(losses, Loss{Seq: seq, SentAt: sentAt})
		w.pending[i] = 0
	}
	w.occupied = 0

	sort.Slice(losses, func(i, j int) bool { return losses[i].Seq < losses[j].Seq })
	return losses
}

// Occupied returns the number of outstanding probes.
func (w *Window) Occupied() int {
	return w.occupied
}

// Basis returns the lowest sequence number of the current lap.
func (w *Window) Basis() uint64 {
	return w.basis
}

// Capacity returns the number of slots.
func (w *Window) Capacity() int {
	return len(w.pending)
}
