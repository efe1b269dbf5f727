package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/logger"
)

const (
	persistentHandshakeMinVersion = 3
	persistentHandshakeMaxVersion = 3
	persistentReconnectBaseDelay  = 1 * time.Second
	persistentReconnectMaxDelay   = 30 * time.Second
)

// InvokeHandler answers an inbound node.invoke.request for a command
// the gateway declared support for (only "talk" in this system).
type InvokeHandler func(ctx context.Context, command string, paramsJSON json.RawMessage) (payload json.RawMessage, err error)

// PersistentGateway keeps one long-lived websocket connection to the
// agent gateway, reconnecting with exponential backoff, and bridges
// inbound node.invoke.request/result frames for the talk command.
type PersistentGateway struct {
	url       string
	clientID  string
	authToken string
	commands  []string
	clk       clock.Clock

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan resultFrame

	reqCounter atomic.Int64
	invoke     InvokeHandler
}

type clientInfo struct {
	ID       string `json:"id"`
	Version  int    `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

type authInfo struct {
	Token string `json:"token,omitempty"`
}

type handshakeFrame struct {
	MinVersion int        `json:"minVersion"`
	MaxVersion int        `json:"maxVersion"`
	Client     clientInfo `json:"client"`
	Commands   []string   `json:"commands"`
	Auth       authInfo   `json:"auth"`
}

type reqFrame struct {
	Type   string    `json:"type"`
	ID     string    `json:"id"`
	Method string    `json:"method"`
	Params reqParams `json:"params"`
}

type reqParams struct {
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
	SessionKey     string `json:"sessionKey"`
}

type resultFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Payload struct {
		Status string `json:"status"`
	} `json:"payload"`
	Result struct {
		Payloads []struct {
			Text string `json:"text"`
		} `json:"payloads"`
	} `json:"result"`
}

type invokeRequestFrame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	NodeID    string          `json:"nodeId"`
	Command   string          `json:"command"`
	ParamsRaw json.RawMessage `json:"paramsJSON"`
	TimeoutMs int             `json:"timeoutMs"`
}

type invokeResultFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	NodeID  string          `json:"nodeId"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewPersistentGateway builds a client for the gateway at url,
// declaring commands (e.g. ["talk"]) during the handshake.
func NewPersistentGateway(url, clientID, authToken string, commands []string, clk clock.Clock) *PersistentGateway {
	return &PersistentGateway{
		url:       url,
		clientID:  clientID,
		authToken: authToken,
		commands:  commands,
		clk:       clk,
		pending:   make(map[string]chan resultFrame),
	}
}

// SetInvokeHandler registers the function used to answer inbound
// node.invoke.request frames.
func (g *PersistentGateway) SetInvokeHandler(h InvokeHandler) {
	g.invoke = h
}

// Run connects and keeps reconnecting with backoff until ctx is done.
func (g *PersistentGateway) Run(ctx context.Context) {
	delay := persistentReconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}
		if err := g.connectAndServe(ctx); err != nil {
			logger.Warn("gateway persistent connection dropped", "err", err, "retryIn", delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-g.clk.After(delay):
		}
		delay *= 2
		if delay > persistentReconnectMaxDelay {
			delay = persistentReconnectMaxDelay
		}
	}
}

func (g *PersistentGateway) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	hs := handshakeFrame{
		MinVersion: persistentHandshakeMinVersion,
		MaxVersion: persistentHandshakeMaxVersion,
		Client: clientInfo{
			ID:       g.clientID,
			Version:  persistentHandshakeMaxVersion,
			Platform: "node",
			Mode:     "backend",
		},
		Commands: g.commands,
		Auth:     authInfo{Token: g.authToken},
	}
	if err := writeJSONFrame(ctx, conn, hs); err != nil {
		return fmt.Errorf("gateway handshake: %w", err)
	}

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	// Run does not reset its backoff delay after a clean connect; the
	// delay keeps doubling up to persistentReconnectMaxDelay.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			g.mu.Lock()
			g.conn = nil
			g.mu.Unlock()
			return fmt.Errorf("gateway read: %w", err)
		}
		g.dispatchFrame(ctx, conn, data)
	}
}

func (g *PersistentGateway) dispatchFrame(ctx context.Context, conn *websocket.Conn, data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.Warn("gateway malformed frame", "err", err)
		return
	}

	switch envelope.Type {
	case "node.invoke.request":
		var req invokeRequestFrame
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn("gateway malformed invoke request", "err", err)
			return
		}
		go g.handleInvoke(ctx, conn, req)
	default:
		var res resultFrame
		if err := json.Unmarshal(data, &res); err != nil {
			return
		}
		if res.Payload.Status == "accepted" {
			logger.Debug("gateway request accepted, still running", "id", res.ID)
			return
		}
		g.mu.Lock()
		ch, ok := g.pending[res.ID]
		if ok {
			delete(g.pending, res.ID)
		}
		g.mu.Unlock()
		if ok {
			ch <- res
		}
	}
}

func (g *PersistentGateway) handleInvoke(ctx context.Context, conn *websocket.Conn, req invokeRequestFrame) {
	result := invokeResultFrame{Type: "node.invoke.result", ID: req.ID, NodeID: req.NodeID}
	if g.invoke == nil {
		result.OK = false
		result.Error = "no invoke handler registered"
	} else {
		invokeCtx := ctx
		if req.TimeoutMs > 0 {
			var cancel context.CancelFunc
			invokeCtx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
			defer cancel()
		}
		payload, err := g.invoke(invokeCtx, req.Command, req.ParamsRaw)
		if err != nil {
			result.OK = false
			result.Error = err.Error()
		} else {
			result.OK = true
			result.Payload = payload
		}
	}
	if err := writeJSONFrame(ctx, conn, result); err != nil {
		logger.Warn("gateway failed to send invoke result", "err", err)
	}
}

// Trigger sends a triggerAgent request and waits for its final result.
func (g *PersistentGateway) Trigger(ctx context.Context, message, idempotencyKey, sessionKey string) (AgentReply, error) {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("gateway: not connected")
	}

	id := fmt.Sprintf("req-%d", g.reqCounter.Add(1))
	ch := make(chan resultFrame, 1)
	g.mu.Lock()
	g.pending[id] = ch
	g.mu.Unlock()

	frame := reqFrame{
		Type:   "req",
		ID:     id,
		Method: "agent",
		Params: reqParams{Message: message, IdempotencyKey: idempotencyKey, SessionKey: sessionKey},
	}
	if err := writeJSONFrame(ctx, conn, frame); err != nil {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
		return nil, fmt.Errorf("gateway send: %w", err)
	}

	select {
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
		return nil, ctx.Err()
	case res := <-ch:
		reply := make(AgentReply, 0, len(res.Result.Payloads))
		for _, p := range res.Result.Payloads {
			reply = append(reply, p.Text)
		}
		return reply, nil
	}
}

func writeJSONFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
