package overlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/linanwx/crawd/logger"
)

// subscriber is one connected overlay websocket client. Each gets its
// own buffered outbound queue so one slow client can't stall the
// others.
type subscriber struct {
	id   string
	send chan envelope
}

// Bus fans out overlay events to every connected subscriber and
// carries the two inbound frame types back to the coordinator via
// AckHandler/MockChatHandler. Modeled on the teacher's async event
// bus, but subscribers are websocket connections instead of
// in-process handlers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	subCounter  int64

	// AckHandler and MockChatHandler are the bus's one-way ports back
	// into the coordinator for the two inbound frame types.
	AckHandler      func(id string)
	MockChatHandler func(username, message string)
}

// NewBus builds an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// addSubscriber registers a new connection and returns its outbound
// queue plus an id to unregister with later.
func (b *Bus) addSubscriber(bufferSize int) (id string, send <-chan envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subCounter++
	sid := fmt.Sprintf("sub-%d", b.subCounter)
	sub := &subscriber{id: sid, send: make(chan envelope, bufferSize)}
	b.subscribers[sid] = sub
	logger.Debug("overlay subscriber connected", "id", sid)
	return sid, sub.send
}

func (b *Bus) removeSubscriber(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		close(sub.send)
		logger.Debug("overlay subscriber disconnected", "id", id)
	}
}

// Publish fans payload out to every connected subscriber on channel.
// A subscriber whose queue is full has the frame dropped rather than
// blocking the publisher.
func (b *Bus) Publish(channel Channel, payload any) {
	env := envelope{Channel: channel, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub.send <- env:
		default:
			logger.Warn("overlay subscriber queue full, frame dropped", "id", sub.id, "channel", channel)
		}
	}
}

// handleInbound dispatches one inbound frame to the matching handler.
// Unknown channels and malformed payloads are logged and ignored; the
// overlay connection is not something the coordinator can control.
func (b *Bus) handleInbound(_ context.Context, channel Channel, raw []byte) {
	switch channel {
	case ChannelTalkDone:
		var frame talkDoneFrame
		if err := decodeFrame(raw, &frame); err != nil {
			logger.Warn("malformed talk:done frame", "err", err)
			return
		}
		if b.AckHandler != nil {
			b.AckHandler(frame.ID)
		}
	case ChannelMockChat:
		var frame mockChatFrame
		if err := decodeFrame(raw, &frame); err != nil {
			logger.Warn("malformed mock-chat frame", "err", err)
			return
		}
		if b.MockChatHandler != nil {
			b.MockChatHandler(frame.Username, frame.Message)
		}
	default:
		logger.Debug("ignoring inbound overlay frame", "channel", channel)
	}
}
