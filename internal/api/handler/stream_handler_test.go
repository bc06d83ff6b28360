package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/api/view"
	"github.com/lendbridge/loanbook/internal/core/domain"
)

func TestStreamHandler_PushesSnapshots(t *testing.T) {
	live := view.NewLive()
	live.Render([]domain.DisplayRow{{Index: 1}})

	e := echo.New()
	e.GET("/v1/loans/stream", NewStreamHandler(live, zerolog.Nop()).Stream)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/loans/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first view.Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if len(first.Loans) != 1 || first.Loans[0].Index != 1 {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}

	// The subscription is registered before the initial write.
	live.Render([]domain.DisplayRow{{Index: 1}, {Index: 2}})

	var next view.Snapshot
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(next.Loans) != 2 || next.Sequence <= first.Sequence {
		t.Fatalf("unexpected update: %+v", next)
	}
}

func TestStreamHandler_ReleasesSubscriptionOnClose(t *testing.T) {
	live := view.NewLive()

	e := echo.New()
	e.GET("/stream", NewStreamHandler(live, zerolog.Nop()).Stream)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	var snap view.Snapshot
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if live.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", live.Subscribers())
	}

	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for live.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released after client close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
