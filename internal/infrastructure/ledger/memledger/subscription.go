package memledger

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// subscription delivers notifications in emission order without dropping
// any: pushes never block the ledger, the queue is drained by loop.
type subscription struct {
	id     string
	ledger *Ledger
	out    chan domain.Notification

	mu    sync.Mutex
	queue []domain.Notification
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSubscription(l *Ledger) *subscription {
	return &subscription{
		id:     uuid.NewString(),
		ledger: l,
		out:    make(chan domain.Notification),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscription) Notifications() <-chan domain.Notification {
	return s.out
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.ledger.removeSubscription(s.id)
	})
	return nil
}

func (s *subscription) push(n domain.Notification) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) loop() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		n := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- n:
		case <-s.done:
			return
		}
	}
}
