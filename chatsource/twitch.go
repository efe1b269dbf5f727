package chatsource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/linanwx/crawd/logger"
)

const (
	twitchMessageBufferSize = 200
	twitchDefaultEndpoint   = "wss://irc-ws.chat.twitch.tv:443"
)

// TwitchAdapter streams chat from a Twitch channel over the IRC-over-
// websocket gateway (tags capability enabled for badges/membership).
type TwitchAdapter struct {
	endpoint string
	channel  string
	nick     string
	oauth    string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	messages chan ChatMessage
	events   chan Event
}

// NewTwitchAdapter builds an adapter for #channel. oauth is an IRC
// "oauth:<token>" credential; nick is the bot's own login name.
func NewTwitchAdapter(channel, nick, oauth string) *TwitchAdapter {
	return &TwitchAdapter{
		endpoint: twitchDefaultEndpoint,
		channel:  strings.ToLower(channel),
		nick:     nick,
		oauth:    oauth,
		messages: make(chan ChatMessage, twitchMessageBufferSize),
		events:   make(chan Event, 8),
	}
}

func (a *TwitchAdapter) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, a.endpoint, nil)
	if err != nil {
		return fmt.Errorf("twitch dial: %w", err)
	}

	handshake := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS " + a.oauth,
		"NICK " + a.nick,
		"JOIN #" + a.channel,
	}
	for _, line := range handshake {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line+"\r\n")); err != nil {
			conn.Close(websocket.StatusInternalError, "handshake failed")
			return fmt.Errorf("twitch handshake: %w", err)
		}
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	a.connected.Store(true)

	go a.readLoop(ctx, conn)
	logger.Info("twitch adapter connected", "channel", a.channel)
	return nil
}

func (a *TwitchAdapter) Disconnect() error {
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

func (a *TwitchAdapter) IsConnected() bool { return a.connected.Load() }

func (a *TwitchAdapter) Messages() <-chan ChatMessage { return a.messages }

func (a *TwitchAdapter) Events() <-chan Event { return a.events }

func (a *TwitchAdapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			a.connected.Store(false)
			a.events <- Event{Kind: EventDisconnected, Err: err}
			return
		}

		for _, line := range strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n") {
			a.handleLine(ctx, conn, line)
		}
	}
}

func (a *TwitchAdapter) handleLine(ctx context.Context, conn *websocket.Conn, line string) {
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "PING") {
		conn.Write(ctx, websocket.MessageText, []byte("PONG :tmi.twitch.tv\r\n"))
		return
	}

	msg, ok := parseTwitchPrivmsg(line)
	if !ok {
		return
	}
	a.messages <- msg
}

// parseTwitchPrivmsg parses a single tagged IRC PRIVMSG line:
// @badges=moderator/1;display-name=Foo;... :foo!foo@foo.tmi.twitch.tv PRIVMSG #chan :hello
func parseTwitchPrivmsg(line string) (ChatMessage, bool) {
	var tags map[string]string
	rest := line
	if strings.HasPrefix(line, "@") {
		sp := strings.SplitN(line, " ", 2)
		if len(sp) != 2 {
			return ChatMessage{}, false
		}
		tags = parseTwitchTags(sp[0][1:])
		rest = sp[1]
	}

	if !strings.Contains(rest, "PRIVMSG") {
		return ChatMessage{}, false
	}
	parts := strings.SplitN(rest, " :", 2)
	if len(parts) != 2 {
		return ChatMessage{}, false
	}
	body := parts[1]

	username := tags["display-name"]
	if username == "" {
		if i := strings.Index(rest, "!"); i > 1 && strings.HasPrefix(rest, ":") {
			username = rest[1:i]
		}
	}

	id, shortID := NewID()
	arrival := time.Now().UnixMilli()
	if ts, err := strconv.ParseInt(tags["tmi-sent-ts"], 10, 64); err == nil && ts > 0 {
		arrival = ts
	}

	amount := 0.0
	if v, err := strconv.ParseFloat(tags["bits"], 64); err == nil {
		amount = v
	}

	return ChatMessage{
		ID:        id,
		ShortID:   shortID,
		Platform:  PlatformTwitch,
		Username:  username,
		Body:      body,
		ArrivalMs: arrival,
		Metadata: Metadata{
			Moderator:       tags["mod"] == "1",
			Member:          tags["subscriber"] == "1",
			SuperchatAmount: amount,
		},
	}, true
}

func parseTwitchTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, kv := range strings.Split(raw, ";") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			tags[parts[0]] = parts[1]
		}
	}
	return tags
}
