package overlay

import (
	"context"
	"testing"
	"time"
)

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	b := NewBus()
	id1, send1 := b.addSubscriber(4)
	id2, send2 := b.addSubscriber(4)
	defer b.removeSubscriber(id1)
	defer b.removeSubscriber(id2)

	b.Publish(ChannelStatus, StatusPayload{Status: "active"})

	for _, ch := range []<-chan envelope{send1, send2} {
		select {
		case env := <-ch:
			if env.Channel != ChannelStatus {
				t.Fatalf("unexpected channel: %s", env.Channel)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a subscriber to receive the published frame")
		}
	}
}

func TestPublishDropsOnFullSubscriberQueue(t *testing.T) {
	b := NewBus()
	id, send := b.addSubscriber(1)
	defer b.removeSubscriber(id)

	b.Publish(ChannelChat, "first")
	b.Publish(ChannelChat, "second") // queue is full (size 1); this one should be dropped, not block

	select {
	case env := <-send:
		if env.Payload != "first" {
			t.Fatalf("expected the first frame to have been queued, got %+v", env.Payload)
		}
	default:
		t.Fatal("expected the first frame to be queued")
	}

	select {
	case <-send:
		t.Fatal("expected the second frame to have been dropped")
	default:
	}
}

func TestRemoveSubscriberClosesItsQueue(t *testing.T) {
	b := NewBus()
	id, send := b.addSubscriber(4)
	b.removeSubscriber(id)

	_, ok := <-send
	if ok {
		t.Fatal("expected the subscriber's queue to be closed after removal")
	}
}

func TestHandleInboundDispatchesAckFrame(t *testing.T) {
	b := NewBus()
	var gotID string
	b.AckHandler = func(id string) { gotID = id }

	b.handleInbound(context.Background(), ChannelTalkDone, []byte(`{"id":"abc123"}`))

	if gotID != "abc123" {
		t.Fatalf("expected ack handler invoked with id, got %q", gotID)
	}
}

func TestHandleInboundDispatchesMockChatFrame(t *testing.T) {
	b := NewBus()
	var gotUser, gotMsg string
	b.MockChatHandler = func(username, message string) {
		gotUser, gotMsg = username, message
	}

	b.handleInbound(context.Background(), ChannelMockChat, []byte(`{"username":"alice","message":"hi"}`))

	if gotUser != "alice" || gotMsg != "hi" {
		t.Fatalf("expected mock chat handler invoked with frame fields, got user=%q msg=%q", gotUser, gotMsg)
	}
}

func TestHandleInboundIgnoresMalformedFrame(t *testing.T) {
	b := NewBus()
	called := false
	b.AckHandler = func(id string) { called = true }

	b.handleInbound(context.Background(), ChannelTalkDone, []byte(`not json`))

	if called {
		t.Fatal("expected malformed frame to be ignored rather than invoking the handler")
	}
}

func TestHandleInboundIgnoresUnknownChannel(t *testing.T) {
	b := NewBus()
	// Should not panic on an unrecognized channel.
	b.handleInbound(context.Background(), Channel("crawd:unknown"), []byte(`{}`))
}
