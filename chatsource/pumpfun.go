package chatsource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/linanwx/crawd/logger"
)

const pumpfunMessageBufferSize = 200

// pumpfunWireMessage is the chat-event shape received from the
// pump.fun live room websocket.
type pumpfunWireMessage struct {
	Type         string  `json:"type"`
	UserAddress  string  `json:"userAddress"`
	Username     string  `json:"username"`
	Message      string  `json:"message"`
	TimestampMs  int64   `json:"timestampMs"`
	PhotoURL     string  `json:"photoUrl"`
	IsModerator  bool    `json:"isModerator"`
	TipAmountSOL float64 `json:"tipAmountSol"`
}

// PumpfunAdapter streams chat from a pump.fun livestream room over a
// websocket connection.
type PumpfunAdapter struct {
	endpoint string
	roomID   string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	messages chan ChatMessage
	events   chan Event
}

// NewPumpfunAdapter builds an adapter for the given room on the given
// websocket endpoint (e.g. "wss://livechat.pump.fun/ws").
func NewPumpfunAdapter(endpoint, roomID string) *PumpfunAdapter {
	return &PumpfunAdapter{
		endpoint: endpoint,
		roomID:   roomID,
		messages: make(chan ChatMessage, pumpfunMessageBufferSize),
		events:   make(chan Event, 8),
	}
}

func (a *PumpfunAdapter) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, a.endpoint, nil)
	if err != nil {
		return fmt.Errorf("pumpfun dial: %w", err)
	}

	sub := map[string]string{"type": "subscribe", "roomId": a.roomID}
	if err := writeJSON(ctx, conn, sub); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return fmt.Errorf("pumpfun subscribe: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	a.connected.Store(true)

	go a.readLoop(ctx, conn)
	logger.Info("pumpfun adapter connected", "room", a.roomID)
	return nil
}

func (a *PumpfunAdapter) Disconnect() error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	a.connected.Store(false)
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "disconnect")
}

func (a *PumpfunAdapter) IsConnected() bool { return a.connected.Load() }

func (a *PumpfunAdapter) Messages() <-chan ChatMessage { return a.messages }

func (a *PumpfunAdapter) Events() <-chan Event { return a.events }

func (a *PumpfunAdapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			a.connected.Store(false)
			a.events <- Event{Kind: EventDisconnected, Err: err}
			return
		}

		var wire pumpfunWireMessage
		if err := json.Unmarshal(data, &wire); err != nil {
			logger.Warn("pumpfun adapter malformed frame", "err", err)
			continue
		}
		if wire.Type != "chat" || wire.Message == "" {
			continue
		}

		id, shortID := NewID()
		arrival := wire.TimestampMs
		if arrival == 0 {
			arrival = time.Now().UnixMilli()
		}
		a.messages <- ChatMessage{
			ID:        id,
			ShortID:   shortID,
			Platform:  PlatformPumpfun,
			Username:  wire.Username,
			Body:      wire.Message,
			ArrivalMs: arrival,
			Metadata: Metadata{
				AuthorPhotoURL:  wire.PhotoURL,
				Moderator:       wire.IsModerator,
				SuperchatAmount: wire.TipAmountSOL,
			},
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
