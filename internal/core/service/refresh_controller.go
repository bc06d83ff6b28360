package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// SubscriptionState is the lifecycle state of a refresh subscription.
type SubscriptionState int32

const (
	StateUnsubscribed SubscriptionState = iota
	StateActive
)

func (s SubscriptionState) String() string {
	if s == StateActive {
		return "active"
	}
	return "unsubscribed"
}

// RefreshObserver receives counters from the refresh controller (metrics).
type RefreshObserver interface {
	NotificationReceived()
	NotificationDuplicate()
	RefreshCoalesced()
}

// RefreshController turns a store's append notifications into refresh runs.
// At most one run is in flight per subscription and at most one more is
// pending; a burst of notifications during a run collapses into one re-run.
type RefreshController struct {
	dedup    ports.NotificationDedup
	observer RefreshObserver
	log      zerolog.Logger
}

// NewRefreshController returns a controller. dedup and observer may be nil.
func NewRefreshController(dedup ports.NotificationDedup, observer RefreshObserver, log zerolog.Logger) *RefreshController {
	return &RefreshController{dedup: dedup, observer: observer, log: log}
}

// Subscription is an active link between a store's notification feed and a
// refresh callback.
type Subscription struct {
	id       string
	feed     ports.AppendSubscription
	onNotify func(context.Context)
	ctrl     *RefreshController

	trigger  chan struct{} // capacity 1: the pending re-run flag
	done     chan struct{}
	stopOnce sync.Once
	state    atomic.Int32
	wg       sync.WaitGroup
}

// Subscribe starts delivering store notifications to onNotify. Runs receive
// a context detached from ctx's cancellation so a run in flight always
// completes; cancelling ctx unsubscribes.
func (c *RefreshController) Subscribe(ctx context.Context, store ports.RecordStore, onNotify func(context.Context)) (*Subscription, error) {
	if onNotify == nil {
		return nil, errors.New("subscribe: nil callback")
	}
	if store == nil {
		return nil, domain.ErrStoreUnavailable
	}

	feed, err := store.OnAppend(ctx)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:       uuid.New().String(),
		feed:     feed,
		onNotify: onNotify,
		ctrl:     c,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	sub.state.Store(int32(StateActive))

	sub.wg.Add(2)
	go sub.pump(ctx)
	go sub.run(context.WithoutCancel(ctx))

	c.log.Info().Str("subscription", sub.id).Msg("subscribed to append notifications")
	return sub, nil
}

// Unsubscribe stops further runs of sub. A run in flight is not aborted.
func (c *RefreshController) Unsubscribe(sub *Subscription) {
	if sub != nil {
		sub.Unsubscribe()
	}
}

// ID returns the subscription identifier used in logs.
func (s *Subscription) ID() string {
	return s.id
}

// State reports whether the subscription is active.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Unsubscribe closes the feed and prevents further runs. Safe to call more
// than once and from any goroutine.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateUnsubscribed))
		close(s.done)
		if err := s.feed.Close(); err != nil {
			s.ctrl.log.Warn().Err(err).Str("subscription", s.id).Msg("closing notification feed")
		}
		s.ctrl.log.Info().Str("subscription", s.id).Msg("unsubscribed from append notifications")
	})
}

// Wait blocks until the subscription's goroutines have exited, including any
// run that was in flight when it was unsubscribed. Must not be called from
// inside the callback.
func (s *Subscription) Wait() {
	s.wg.Wait()
}

func (s *Subscription) pump(ctx context.Context) {
	defer s.wg.Done()
	notifications := s.feed.Notifications()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case n, ok := <-notifications:
			if !ok {
				s.ctrl.log.Warn().Str("subscription", s.id).Msg("notification feed closed")
				s.Unsubscribe()
				return
			}
			if s.ctrl.observer != nil {
				s.ctrl.observer.NotificationReceived()
			}
			if s.ctrl.duplicate(ctx, s.id, n) {
				continue
			}
			select {
			case s.trigger <- struct{}{}:
			default:
				if s.ctrl.observer != nil {
					s.ctrl.observer.RefreshCoalesced()
				}
				s.ctrl.log.Debug().Int("index", n.Index).Msg("refresh already pending, coalesced")
			}
		}
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.trigger:
			// A pending run must not start once unsubscribed.
			select {
			case <-s.done:
				return
			default:
			}
			s.onNotify(ctx)
		}
	}
}

// duplicate reports whether n was already acted upon by the subscription
// id. Keys are scoped to the subscription so every subscriber sharing a dedup
// store still sees each notification once. Dedup failures are logged and the
// notification is treated as new.
func (c *RefreshController) duplicate(ctx context.Context, id string, n domain.Notification) bool {
	if c.dedup == nil {
		return false
	}

	key := id + ":" + n.Key()
	fresh, err := c.dedup.MarkNew(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("dedup check failed, refreshing anyway")
		return false
	}
	if !fresh {
		if c.observer != nil {
			c.observer.NotificationDuplicate()
		}
		c.log.Debug().Str("key", key).Msg("duplicate notification skipped")
		return true
	}
	return false
}
