package inference

import (
	"sync"

	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// reorderBuffer holds decisions completed out of order until every decision
// for an earlier frame is available. Sequence numbers are registered in
// arrival order with expect; complete may be called in any order.
type reorderBuffer struct {
	mu      sync.Mutex
	order   []uint32
	results map[uint32]wire.Decision

	// notify has capacity 1 and is signaled whenever the head may be ready.
	notify chan struct{}
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{
		results: make(map[uint32]wire.Decision),
		notify:  make(chan struct{}, 1),
	}
}

// expect registers seq as the next frame in arrival order.
func (b *reorderBuffer) expect(seq uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = append(b.order, seq)
}

// complete stores the decision for a registered frame. It returns false
// for a sequence number that was never registered or already completed.
func (b *reorderBuffer) complete(d wire.Decision) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.results[d.Seq]; dup || !b.registered(d.Seq) {
		return false
	}
	b.results[d.Seq] = d

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// pop removes and returns the longest run of completed decisions at the
// head, in arrival order.
func (b *reorderBuffer) pop() []wire.Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []wire.Decision
	for len(b.order) > 0 {
		d, ok := b.results[b.order[0]]
		if !ok {
			break
		}
		out = append(out, d)
		delete(b.results, b.order[0])
		b.order = b.order[1:]
	}
	return out
}

// pending returns the number of registered frames not popped yet.
func (b *reorderBuffer) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// registered must be called with mu held. Registered numbers increase, so
// the search is a binary search over order.
func (b *reorderBuffer) registered(seq uint32) bool {
	lo, hi := 0, len(b.order)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if b.order[mid] < seq {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(b.order) && b.order[lo] == seq
}
