package chatsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/logger"
)

const (
	twitterMessageBufferSize = 200
	twitterDedupeWindow      = 500
	twitterPollInterval      = 15 * time.Second
)

type twitterMentionsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
		AuthorID  string `json:"author_id"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Verified bool   `json:"verified"`
		} `json:"users"`
	} `json:"includes"`
}

// TwitterAdapter polls mentions of a livestream's account, since the
// platform's chat surface (replies/mentions) is REST, not streaming.
type TwitterAdapter struct {
	apiBase     string
	bearerToken string
	userID      string
	client      *http.Client
	clk         clock.Clock

	mu        sync.Mutex
	connected atomic.Bool
	cancel    context.CancelFunc
	seen      []string
	seenSet   map[string]bool

	messages chan ChatMessage
	events   chan Event
}

// NewTwitterAdapter polls mentions of userID using bearerToken.
func NewTwitterAdapter(apiBase, userID, bearerToken string, clk clock.Clock) *TwitterAdapter {
	return &TwitterAdapter{
		apiBase:     apiBase,
		bearerToken: bearerToken,
		userID:      userID,
		client:      &http.Client{Timeout: 10 * time.Second},
		clk:         clk,
		seenSet:     make(map[string]bool),
		messages:    make(chan ChatMessage, twitterMessageBufferSize),
		events:      make(chan Event, 8),
	}
}

func (a *TwitterAdapter) Connect(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	a.connected.Store(true)

	go a.pollLoop(pollCtx)
	logger.Info("twitter adapter connected", "userId", a.userID)
	return nil
}

func (a *TwitterAdapter) Disconnect() error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	a.connected.Store(false)
	if cancel != nil {
		cancel()
	}
	return nil
}

func (a *TwitterAdapter) IsConnected() bool { return a.connected.Load() }

func (a *TwitterAdapter) Messages() <-chan ChatMessage { return a.messages }

func (a *TwitterAdapter) Events() <-chan Event { return a.events }

func (a *TwitterAdapter) pollLoop(ctx context.Context) {
	ticker := a.clk.NewTicker(twitterPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := a.pollOnce(ctx); err != nil {
				logger.Warn("twitter adapter poll failed", "err", err)
				a.connected.Store(false)
				a.events <- Event{Kind: EventError, Err: err}
				return
			}
		}
	}
}

func (a *TwitterAdapter) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/2/users/%s/mentions?expansions=author_id&user.fields=username,verified&tweet.fields=created_at",
		a.apiBase, a.userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.bearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("twitter poll: unexpected status %d", resp.StatusCode)
	}

	var parsed twitterMentionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("twitter poll: decode: %w", err)
	}

	usersByID := make(map[string]string, len(parsed.Includes.Users))
	for _, u := range parsed.Includes.Users {
		usersByID[u.ID] = u.Username
	}

	for _, tweet := range parsed.Data {
		if a.alreadySeen(tweet.ID) {
			continue
		}
		arrival := time.Now().UnixMilli()
		if t, err := time.Parse(time.RFC3339, tweet.CreatedAt); err == nil {
			arrival = t.UnixMilli()
		}

		id, shortID := NewID()
		a.messages <- ChatMessage{
			ID:        id,
			ShortID:   shortID,
			Platform:  PlatformTwitter,
			Username:  usersByID[tweet.AuthorID],
			Body:      tweet.Text,
			ArrivalMs: arrival,
		}
	}
	return nil
}

func (a *TwitterAdapter) alreadySeen(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seenSet[id] {
		return true
	}
	a.seenSet[id] = true
	a.seen = append(a.seen, id)
	if len(a.seen) > twitterDedupeWindow {
		evicted := a.seen[0]
		a.seen = a.seen[1:]
		delete(a.seenSet, evicted)
	}
	return false
}
