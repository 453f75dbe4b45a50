package bus

import (
	"sync"
	"time"
)

// Queue is the single event queue between producers (timer, chat poller)
// and the dispatch loop. Unbounded FIFO: Enqueue never blocks, so producers
// can run from any goroutine. There is exactly one consumer.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends item to the tail. Safe for concurrent use.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue returns the oldest item, blocking up to timeout if the queue is
// empty. The second return is false when the timeout expired with nothing
// to deliver.
func (q *Queue) Dequeue(timeout time.Duration) (Item, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// Re-arm the wakeup so the next Dequeue does not
				// have to wait out its timer.
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			return nil, false
		}
	}
}

// Len reports how many items are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
