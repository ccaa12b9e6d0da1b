package ledger

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"threesquare.land/tsl/internal/types"
)

// feed holds the event sequence, the bounded history and the asynchronous
// subscribers. It is guarded by the ledger lock.
type feed struct {
	seq     uint64
	history []types.Event
	maxSize int
	subs    map[int]chan types.Event
	nextSub int
	dropped uint64
}

func newFeed(maxSize int) *feed {
	return &feed{
		history: make([]types.Event, 0, 64),
		maxSize: maxSize,
		subs:    make(map[int]chan types.Event),
	}
}

// emitLocked stamps and publishes events committed by the current mutation.
func (l *Ledger) emitLocked(at time.Time, events ...types.Event) {
	for _, ev := range events {
		ev.ID = uuid.NewString()
		ev.At = at
		if r := l.replaying; r != nil && r.Type == ev.Type {
			ev.ID = r.ID
			l.feed.seq = r.Seq - 1
		}
		l.feed.seq++
		ev.Seq = l.feed.seq

		l.feed.history = append(l.feed.history, ev)
		// Keep only the last maxSize events
		if len(l.feed.history) > l.feed.maxSize {
			l.feed.history = l.feed.history[len(l.feed.history)-l.feed.maxSize:]
		}

		for _, o := range l.observers {
			o.Observe(ev)
		}

		for id, ch := range l.feed.subs {
			select {
			case ch <- ev:
			default:
				l.feed.dropped++
				log.Printf("WARNING: ledger subscriber %d is lagging, dropped event %d", id, ev.Seq)
			}
		}
	}
}

// Subscribe returns a channel receiving every event committed after the call.
// Delivery never blocks the ledger: when the buffer is full the event is
// dropped for that subscriber, which can catch up with EventsSince. The
// returned cancel function closes the channel.
func (l *Ledger) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan types.Event, buffer)

	l.mu.Lock()
	id := l.feed.nextSub
	l.feed.nextSub++
	l.feed.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.feed.subs, id)
			close(ch)
			l.mu.Unlock()
		})
	}
	return ch, cancel
}

// EventsSince returns retained events with a sequence number above seq,
// oldest first. Events older than the history bound are no longer available.
func (l *Ledger) EventsSince(seq uint64) []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h := l.feed.history
	i := sort.Search(len(h), func(i int) bool { return h[i].Seq > seq })
	out := make([]types.Event, len(h)-i)
	copy(out, h[i:])
	return out
}

// LastSeq returns the sequence number of the most recent event.
func (l *Ledger) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feed.seq
}

// Dropped returns how many subscriber deliveries were skipped.
func (l *Ledger) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feed.dropped
}
