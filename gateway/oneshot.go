package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

const oneShotHardTimeout = 120 * time.Second

// OneShotGateway opens a fresh connection per call instead of keeping
// one alive, trading latency for simplicity and isolation.
type OneShotGateway struct {
	url       string
	clientID  string
	authToken string
}

// NewOneShotGateway builds a one-shot transport for the gateway at url.
func NewOneShotGateway(url, clientID, authToken string) *OneShotGateway {
	return &OneShotGateway{url: url, clientID: clientID, authToken: authToken}
}

// Trigger dials a new connection, authenticates, sends one request,
// waits for the final payloads, and closes. The whole exchange is
// bounded by a 120 s hard timeout.
func (g *OneShotGateway) Trigger(ctx context.Context, message, idempotencyKey, sessionKey string) (AgentReply, error) {
	ctx, cancel := context.WithTimeout(ctx, oneShotHardTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, g.url, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := g.awaitChallengeIfAny(ctx, conn); err != nil {
		return nil, err
	}

	hs := handshakeFrame{
		MinVersion: persistentHandshakeMinVersion,
		MaxVersion: persistentHandshakeMaxVersion,
		Client: clientInfo{
			ID:       g.clientID,
			Version:  persistentHandshakeMaxVersion,
			Platform: "node",
			Mode:     "backend",
		},
		Auth: authInfo{Token: g.authToken},
	}
	if err := writeJSONFrame(ctx, conn, hs); err != nil {
		return nil, fmt.Errorf("gateway handshake: %w", err)
	}

	req := reqFrame{
		Type:   "req",
		ID:     "oneshot-1",
		Method: "agent",
		Params: reqParams{Message: message, IdempotencyKey: idempotencyKey, SessionKey: sessionKey},
	}
	if err := writeJSONFrame(ctx, conn, req); err != nil {
		return nil, fmt.Errorf("gateway send: %w", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("gateway read: %w", err)
		}
		var res resultFrame
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		if res.Payload.Status == "accepted" {
			continue
		}
		if res.ID != req.ID {
			continue
		}
		reply := make(AgentReply, 0, len(res.Result.Payloads))
		for _, p := range res.Result.Payloads {
			reply = append(reply, p.Text)
		}
		return reply, nil
	}
}

type challengeFrame struct {
	Type  string `json:"type"`
	Nonce string `json:"nonce"`
}

type challengeResponseFrame struct {
	Type  string `json:"type"`
	Nonce string `json:"nonce"`
}

// awaitChallengeIfAny briefly peeks for an optional connect.challenge
// event right after dial and answers it; gateways that skip the
// challenge simply time out the peek and the handshake proceeds.
func (g *OneShotGateway) awaitChallengeIfAny(ctx context.Context, conn *websocket.Conn) error {
	peekCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(peekCtx)
	if err != nil {
		return nil
	}

	var challenge challengeFrame
	if err := json.Unmarshal(data, &challenge); err != nil || challenge.Type != "connect.challenge" {
		return nil
	}
	return writeJSONFrame(ctx, conn, challengeResponseFrame{
		Type:  "connect.challenge.response",
		Nonce: challenge.Nonce,
	})
}
