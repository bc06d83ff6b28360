package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// stubCmdable answers SETNX from memory. Any other command panics through
// the nil embedded interface.
type stubCmdable struct {
	redis.Cmdable

	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func newStubCmdable() *stubCmdable {
	return &stubCmdable{keys: make(map[string]time.Duration)}
}

func (s *stubCmdable) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if s.err != nil {
		return redis.NewBoolResult(false, s.err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestDedupChecker_DefaultTTL(t *testing.T) {
	if d := NewDedupChecker(newStubCmdable(), 0); d.ttl != DefaultDedupTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultDedupTTL, d.ttl)
	}
	if d := NewDedupChecker(newStubCmdable(), time.Minute); d.ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", d.ttl)
	}
}

func TestDedupChecker_MarkNew(t *testing.T) {
	client := newStubCmdable()
	d := NewDedupChecker(client, time.Minute)
	ctx := context.Background()

	fresh, err := d.MarkNew(ctx, "sub-1:Lending:3:0xabc")
	if err != nil {
		t.Fatalf("MarkNew: %v", err)
	}
	if !fresh {
		t.Fatal("expected first notification to be new")
	}

	fresh, err = d.MarkNew(ctx, "sub-1:Lending:3:0xabc")
	if err != nil {
		t.Fatalf("MarkNew: %v", err)
	}
	if fresh {
		t.Error("expected redelivered notification to be a duplicate")
	}

	// Another subscriber sees the same append as new.
	fresh, err = d.MarkNew(ctx, "sub-2:Lending:3:0xabc")
	if err != nil || !fresh {
		t.Errorf("expected new for another subscription, got fresh=%v err=%v", fresh, err)
	}

	ttl, ok := client.keys["dedup:notification:sub-1:Lending:3:0xabc"]
	if !ok {
		t.Fatalf("expected prefixed key, have %v", client.keys)
	}
	if ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", ttl)
	}
}

func TestDedupChecker_MarkNewError(t *testing.T) {
	client := newStubCmdable()
	client.err = errors.New("connection refused")

	if _, err := NewDedupChecker(client, 0).MarkNew(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}
