package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// pubSubClient is the part of *redis.Client the feed uses.
type pubSubClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// AppendFeed carries loan append notifications over Redis pub/sub, one
// channel per contract.
type AppendFeed struct {
	client  pubSubClient
	channel string
	log     zerolog.Logger
}

// NewAppendFeed returns a feed for contract.
func NewAppendFeed(client pubSubClient, contract string, log zerolog.Logger) *AppendFeed {
	return &AppendFeed{
		client:  client,
		channel: "loanbook:appended:" + contract,
		log:     log,
	}
}

// Channel returns the pub/sub channel name.
func (f *AppendFeed) Channel() string { return f.channel }

func (f *AppendFeed) Publish(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe opens a subscription and waits for Redis to confirm it, so that
// notifications published after Subscribe returns are delivered.
func (f *AppendFeed) Subscribe(ctx context.Context) (ports.AppendSubscription, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %w", domain.ErrStoreUnavailable, f.channel, err)
	}
	return newFeedSubscription(ps.Channel(), ps, f.log), nil
}

type feedSubscription struct {
	msgs   <-chan *redis.Message
	closer io.Closer
	out    chan domain.Notification
	done   chan struct{}
	once   sync.Once
	log    zerolog.Logger
}

// newFeedSubscription decodes msgs until closer is closed or msgs ends.
func newFeedSubscription(msgs <-chan *redis.Message, closer io.Closer, log zerolog.Logger) *feedSubscription {
	s := &feedSubscription{
		msgs:   msgs,
		closer: closer,
		out:    make(chan domain.Notification),
		done:   make(chan struct{}),
		log:    log,
	}
	go s.loop()
	return s
}

func (s *feedSubscription) Notifications() <-chan domain.Notification { return s.out }

func (s *feedSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.closer.Close()
	})
	return err
}

func (s *feedSubscription) loop() {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.msgs:
			if !ok {
				return
			}
			n, err := decodeNotification(msg.Payload)
			if err != nil {
				s.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed append notification")
				continue
			}
			select {
			case s.out <- n:
			case <-s.done:
				return
			}
		}
	}
}

func decodeNotification(payload string) (domain.Notification, error) {
	var n domain.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return domain.Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}
