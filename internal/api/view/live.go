// Package view holds the browser-facing projection of a session: the last
// rendered loans plus the loading, account and error state, pushed to stream
// subscribers after every change.
package view

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// Snapshot is the state of the loan table as a client would draw it.
type Snapshot struct {
	Account   domain.Address      `json:"account"`
	Enabled   bool                `json:"enabled"`
	Loading   bool                `json:"loading"`
	Loans     []domain.DisplayRow `json:"loans"`
	Error     string              `json:"error,omitempty"`
	Sequence  uint64              `json:"sequence"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Live implements ports.Renderer by keeping a Snapshot and broadcasting it.
// Each subscriber has a one-slot mailbox holding the newest snapshot, so a
// slow client skips intermediate states instead of blocking renders.
type Live struct {
	mu    sync.RWMutex
	snap  Snapshot
	subs  map[string]chan Snapshot
	clock func() time.Time
}

// NewLive returns an empty view.
func NewLive() *Live {
	return &Live{
		snap:  Snapshot{Loans: []domain.DisplayRow{}},
		subs:  make(map[string]chan Snapshot),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns a copy of the current state.
func (l *Live) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyLocked()
}

func (l *Live) copyLocked() Snapshot {
	s := l.snap
	s.Loans = slices.Clone(l.snap.Loans)
	return s
}

// Subscribe registers a stream client. The returned channel receives the
// newest snapshot after every change; cancel releases it and closes the
// channel.
func (l *Live) Subscribe() (<-chan Snapshot, func()) {
	id := uuid.NewString()
	ch := make(chan Snapshot, 1)

	l.mu.Lock()
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			close(ch)
			l.mu.Unlock()
		})
	}
	return ch, cancel
}

// Subscribers returns the number of connected stream clients.
func (l *Live) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

func (l *Live) ShowLoading() {
	l.update(func(s *Snapshot) { s.Loading = true })
}

func (l *Live) HideLoading() {
	l.update(func(s *Snapshot) { s.Loading = false })
}

func (l *Live) ShowAccount(account domain.Address) {
	l.update(func(s *Snapshot) {
		s.Account = account
		s.Enabled = !account.IsZero()
	})
}

func (l *Live) Render(rows []domain.DisplayRow) {
	l.update(func(s *Snapshot) {
		s.Loans = slices.Clone(rows)
		if s.Loans == nil {
			s.Loans = []domain.DisplayRow{}
		}
		s.Error = ""
	})
}

// ShowError records err; the rows on display are left as they are.
func (l *Live) ShowError(err error) {
	if err == nil {
		return
	}
	l.update(func(s *Snapshot) { s.Error = err.Error() })
}

func (l *Live) update(fn func(*Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fn(&l.snap)
	l.snap.Sequence++
	l.snap.UpdatedAt = l.clock()

	for _, ch := range l.subs {
		snap := l.copyLocked()
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
