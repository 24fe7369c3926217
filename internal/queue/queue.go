// Package queue implements the priority transmit queue between the
// data-link state machine and the CSMA transmit thread (spec §5),
// grounded on the teacher's src/tq.go and
// original_source/src/transmit_queue.c's two-priority linked list guarded
// by a mutex and wake-up condition variable. sync.Cond is the direct Go
// equivalent of that pthread_cond_t pattern.
package queue

import (
	"sync"

	"github.com/kb9xyz/packetnode/internal/ax25"
)

// Priority mirrors TQ_PRIO_0_HI / TQ_PRIO_1_LO: expedited control frames
// (UA, DM sent with priority) go out ahead of ordinary data traffic.
type Priority int

const (
	PriorityHigh Priority = 0
	PriorityLow  Priority = 1
	numPriorities         = 2
)

// Item is one queued outbound frame, tagged with the channel it belongs
// to (spec §5 supports multiple radio channels sharing the transmit
// thread).
type Item struct {
	Channel int
	Packet  *ax25.Packet
}

// TransmitQueue is a FIFO-per-priority, priority-ordered blocking queue.
type TransmitQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	lists [numPriorities][]Item
	closed bool
}

func New() *TransmitQueue {
	q := &TransmitQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Append enqueues a frame at the given priority and wakes one waiting
// consumer (transmit_queue_append + pthread_cond_signal).
func (q *TransmitQueue) Append(prio Priority, channel int, p *ax25.Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.lists[prio] = append(q.lists[prio], Item{Channel: channel, Packet: p})
	q.cond.Signal()
}

// Wait blocks until a frame is available (highest priority first) or the
// queue is closed, returning ok=false in the latter case. This is the Go
// equivalent of the original's dequeue-with-condvar-wait loop in the
// transmit thread.
func (q *TransmitQueue) Wait() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for p := 0; p < numPriorities; p++ {
			if len(q.lists[p]) > 0 {
				item := q.lists[p][0]
				q.lists[p] = q.lists[p][1:]
				return item, true
			}
		}
		if q.closed {
			return Item{}, false
		}
		q.cond.Wait()
	}
}

// TryWait returns the next queued frame without blocking, matching the
// original's transmit_queue_is_empty check used inside tx_frames to decide
// whether to stay keyed up for another already-queued frame.
func (q *TransmitQueue) TryWait() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := 0; p < numPriorities; p++ {
		if len(q.lists[p]) > 0 {
			item := q.lists[p][0]
			q.lists[p] = q.lists[p][1:]
			return item, true
		}
	}
	return Item{}, false
}

// Empty reports whether every priority list is empty.
func (q *TransmitQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := 0; p < numPriorities; p++ {
		if len(q.lists[p]) > 0 {
			return false
		}
	}
	return true
}

// Close unblocks any waiting consumer permanently, used at shutdown.
func (q *TransmitQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
