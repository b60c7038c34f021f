package tracker

import "sync"

const subscriptionBuffer = 16

// Subscription is one reader's view of a task's tracking events. The
// channel closes after a terminal or tracking-lost event, or when the
// coordinator shuts down.
type Subscription struct {
	taskID string
	ch     chan Event
	once   sync.Once
}

func newSubscription(taskID string) *Subscription {
	return &Subscription{
		taskID: taskID,
		ch:     make(chan Event, subscriptionBuffer),
	}
}

// TaskID returns the task this subscription follows.
func (s *Subscription) TaskID() string {
	return s.taskID
}

// Events returns the receive side of the subscription.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// deliver enqueues without blocking. A full buffer sheds the oldest
// pending event; events stop after the terminal one, so the shed event
// is always a superseded intermediate status.
func (s *Subscription) deliver(event Event) {
	select {
	case s.ch <- event:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.ch)
	})
}
