package feed

import "sync"

// Subscription is a live subscription on one table. Events are delivered in
// publish order through an unbounded queue, so publishers never block on a
// slow consumer and no event is dropped while the subscription is open.
//
// Close must be called exactly when the consumer is done; it is idempotent.
// After Close the Events channel is closed.
type Subscription struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}

	events   chan Event
	done     chan struct{}
	pumpDone chan struct{}

	closeOnce sync.Once
	onClose   func()
}

// NewSubscription creates a subscription. onClose runs once, after delivery
// has stopped, and releases the transport resources behind it.
func NewSubscription(onClose func()) *Subscription {
	s := &Subscription{
		signal:   make(chan struct{}, 1),
		events:   make(chan Event),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
		onClose:  onClose,
	}
	go s.pump()
	return s
}

// Events returns the channel of delivered events
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once Close has been called
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Deliver queues an event for the consumer. It reports false once closed.
func (s *Subscription) Deliver(event Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// Close stops delivery, closes Events and releases the transport
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.pumpDone
		if s.onClose != nil {
			s.onClose()
		}
	})
}

func (s *Subscription) pump() {
	defer close(s.pumpDone)
	defer close(s.events)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		event := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}
