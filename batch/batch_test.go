package batch

import (
	"sync"
	"testing"
	"time"

	"github.com/linanwx/crawd/chatsource"
	"github.com/linanwx/crawd/clock"
)

type batchCollector struct {
	mu      sync.Mutex
	batches [][]chatsource.ChatMessage
}

func (c *batchCollector) onBatch(messages []chatsource.ChatMessage, _ time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, messages)
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *batchCollector) nth(i int) []chatsource.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[i]
}

func msg(arrival int64, body string) chatsource.ChatMessage {
	id, shortID := chatsource.NewID()
	return chatsource.ChatMessage{ID: id, ShortID: shortID, Platform: chatsource.PlatformPumpfun, Username: "u", Body: body, ArrivalMs: arrival}
}

func TestFirstMessageDispatchesImmediatelyAsBatchOfOne(t *testing.T) {
	fc := clock.NewFake()
	c := &batchCollector{}
	b := New(fc, 20*time.Second, fc.Now(), 0, c.onBatch)

	b.Ingress(msg(fc.Now().UnixMilli(), "hello"))

	if c.count() != 1 {
		t.Fatalf("expected immediate single-message batch, got %d batches", c.count())
	}
	if len(c.nth(0)) != 1 {
		t.Fatalf("expected batch of 1, got %d", len(c.nth(0)))
	}
}

func TestMessagesDuringWindowBufferAndFlushTogether(t *testing.T) {
	fc := clock.NewFake()
	c := &batchCollector{}
	b := New(fc, 20*time.Second, fc.Now(), 0, c.onBatch)

	b.Ingress(msg(fc.Now().UnixMilli(), "first"))
	fc.BlockUntil(1)

	b.Ingress(msg(fc.Now().UnixMilli(), "second"))
	b.Ingress(msg(fc.Now().UnixMilli(), "third"))

	fc.Advance(20 * time.Second)

	deadline := time.After(time.Second)
	for c.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("expected buffered messages to flush as a second batch")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	second := c.nth(1)
	if len(second) != 2 {
		t.Fatalf("expected 2 buffered messages in second batch, got %d", len(second))
	}
}

func TestEmptyWindowExpiryClosesWithoutFlush(t *testing.T) {
	fc := clock.NewFake()
	c := &batchCollector{}
	b := New(fc, 20*time.Second, fc.Now(), 0, c.onBatch)

	b.Ingress(msg(fc.Now().UnixMilli(), "only"))
	fc.BlockUntil(1)
	fc.Advance(20 * time.Second)

	time.Sleep(10 * time.Millisecond)
	if c.count() != 1 {
		t.Fatalf("expected no second batch from an empty window, got %d batches", c.count())
	}

	// A message arriving after the window closed opens a fresh window
	// and dispatches immediately as a new batch of one.
	b.Ingress(msg(fc.Now().UnixMilli(), "late"))
	if c.count() != 2 {
		t.Fatalf("expected a new leading-edge dispatch after window closed, got %d batches", c.count())
	}
}

func TestStartupGraceDropsStaleMessages(t *testing.T) {
	fc := clock.NewFake()
	startedAt := fc.Now()
	c := &batchCollector{}
	b := New(fc, 20*time.Second, startedAt, 0, c.onBatch)

	stale := startedAt.Add(-31 * time.Second).UnixMilli()
	b.Ingress(msg(stale, "backlog replay"))

	if c.count() != 0 {
		t.Fatalf("expected stale message to be dropped, got %d batches", c.count())
	}
}

func TestLookupResolvesRecentShortID(t *testing.T) {
	fc := clock.NewFake()
	c := &batchCollector{}
	b := New(fc, 20*time.Second, fc.Now(), 0, c.onBatch)

	m := msg(fc.Now().UnixMilli(), "hello")
	b.Ingress(m)

	got, ok := b.Lookup(m.ShortID)
	if !ok {
		t.Fatal("expected lookup to find the dispatched message")
	}
	if got.Body != "hello" {
		t.Fatalf("unexpected lookup result: %+v", got)
	}
}
