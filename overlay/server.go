// Package overlay implements the stream overlay bus (§6): a websocket
// pub/sub server that pushes talk/reply/chat/status/mcap/plan events
// out to the overlay UI and accepts the two inbound frame types the
// overlay sends back (talk:done acks and mock-chat test fixtures).
package overlay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/linanwx/crawd/logger"
)

const subscriberSendBuffer = 32

// inboundEnvelope mirrors envelope but Payload stays raw so the
// handler can pick the concrete shape by Channel before decoding.
type inboundEnvelope struct {
	Channel Channel         `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

func decodeFrame(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}

// Server upgrades incoming connections to websocket and bridges them
// to a Bus.
type Server struct {
	bus *Bus
}

// NewServer builds a Server publishing and receiving through bus.
func NewServer(bus *Bus) *Server {
	return &Server{bus: bus}
}

// ServeHTTP upgrades the request to a websocket connection, registers
// it as a Bus subscriber, and runs its read and write loops until the
// connection closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("overlay websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	id, send := s.bus.addSubscriber(subscriberSendBuffer)
	defer s.bus.removeSubscriber(id)

	done := make(chan struct{})
	go s.writeLoop(ctx, conn, send, done)
	s.readLoop(ctx, conn)
	<-done
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, send <-chan envelope, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case env, ok := <-send:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "bus closed")
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				logger.Error("failed to marshal overlay frame", "err", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("malformed overlay inbound frame", "err", err)
			continue
		}

		handleCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		s.bus.handleInbound(handleCtx, env.Channel, env.Payload)
		cancel()
	}
}
