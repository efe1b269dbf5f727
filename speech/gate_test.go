package speech

import (
	"testing"
	"time"

	"github.com/linanwx/crawd/clock"
)

func TestTalkRejectsEmptyText(t *testing.T) {
	fc := clock.NewFake()
	g := New(fc, 0, func(string, string) {}, nil, func() {})
	if spoken := g.Talk(""); spoken {
		t.Fatal("expected empty talk text to be a no-op")
	}
}

func TestTalkResolvesOnAck(t *testing.T) {
	fc := clock.NewFake()
	idCh := make(chan string, 1)
	g := New(fc, time.Minute, func(id, msg string) { idCh <- id }, nil, func() {})

	doneCh := make(chan bool, 1)
	go func() { doneCh <- g.Talk("hello chat") }()

	id := <-idCh
	if !g.HasPending(id) {
		t.Fatal("expected pending entry before ack")
	}
	if ok := g.Ack(id); !ok {
		t.Fatal("expected ack to resolve the pending entry")
	}
	if spoken := <-doneCh; !spoken {
		t.Fatal("expected Talk to return true after ack")
	}
	if g.HasPending(id) {
		t.Fatal("expected entry removed after ack")
	}
}

func TestTalkResolvesOnTimeoutFailOpen(t *testing.T) {
	fc := clock.NewFake()
	idCh := make(chan string, 1)
	g := New(fc, 50*time.Millisecond, func(id, msg string) { idCh <- id }, nil, func() {})

	doneCh := make(chan bool, 1)
	go func() { doneCh <- g.Talk("hello chat") }()

	<-idCh
	fc.BlockUntil(1)
	fc.Advance(50 * time.Millisecond)

	if spoken := <-doneCh; !spoken {
		t.Fatal("expected fail-open: timeout still resolves Talk as spoken")
	}
}

func TestAckIsSingleFire(t *testing.T) {
	fc := clock.NewFake()
	idCh := make(chan string, 1)
	g := New(fc, time.Minute, func(id, msg string) { idCh <- id }, nil, func() {})

	go g.Talk("hello")
	id := <-idCh

	if ok := g.Ack(id); !ok {
		t.Fatal("expected first ack to succeed")
	}
	if ok := g.Ack(id); ok {
		t.Fatal("expected second ack on the same id to be a no-op")
	}
}

func TestReplyCarriesTurnContext(t *testing.T) {
	fc := clock.NewFake()
	var gotTurn Turn
	var gotBot string
	idCh := make(chan string, 1)
	g := New(fc, time.Minute, nil, func(id string, turn Turn, botMessage string) {
		gotTurn = turn
		gotBot = botMessage
		idCh <- id
	}, func() {})

	doneCh := make(chan bool, 1)
	go func() {
		doneCh <- g.Reply("sure thing", Turn{Username: "alice", Message: "hi bot"})
	}()

	id := <-idCh
	g.Ack(id)
	<-doneCh

	if gotTurn.Username != "alice" || gotTurn.Message != "hi bot" {
		t.Fatalf("unexpected turn context: %+v", gotTurn)
	}
	if gotBot != "sure thing" {
		t.Fatalf("unexpected bot message: %q", gotBot)
	}
}

func TestTalkNotifiesSpeechBeforeBlocking(t *testing.T) {
	fc := clock.NewFake()
	notified := make(chan struct{}, 1)
	idCh := make(chan string, 1)
	g := New(fc, time.Minute, func(id, msg string) { idCh <- id }, nil, func() { notified <- struct{}{} })

	go g.Talk("hello")
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("expected notifySpeech to be called")
	}
	id := <-idCh
	g.Ack(id)
}

func TestPendingCountReflectsOutstandingUtterances(t *testing.T) {
	fc := clock.NewFake()
	idCh := make(chan string, 2)
	g := New(fc, time.Minute, func(id, msg string) { idCh <- id }, nil, func() {})

	go g.Talk("one")
	go g.Talk("two")

	id1 := <-idCh
	id2 := <-idCh
	if got := g.PendingCount(); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}
	g.Ack(id1)
	if got := g.PendingCount(); got != 1 {
		t.Fatalf("expected 1 pending after one ack, got %d", got)
	}
	g.Ack(id2)
	if got := g.PendingCount(); got != 0 {
		t.Fatalf("expected 0 pending after both acked, got %d", got)
	}
}
