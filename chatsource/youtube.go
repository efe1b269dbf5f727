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
	youtubeMessageBufferSize = 200
	youtubeDedupeWindow      = 500
	youtubePollInterval      = 3 * time.Second
)

type youtubeLiveChatResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			PublishedAt     string `json:"publishedAt"`
			DisplayMessage  string `json:"displayMessage"`
			SuperChatDetail *struct {
				AmountMicros string `json:"amountMicros"`
				Currency     string `json:"currency"`
			} `json:"superChatDetails"`
		} `json:"snippet"`
		AuthorDetails struct {
			DisplayName     string `json:"displayName"`
			ProfileImageURL string `json:"profileImageUrl"`
			IsChatModerator bool   `json:"isChatModerator"`
			IsChatSponsor   bool   `json:"isChatSponsor"`
		} `json:"authorDetails"`
	} `json:"items"`
}

// YoutubeAdapter polls the YouTube Live Chat Messages API, since that
// API is request/response rather than streaming. It keeps a rolling
// dedupe window of recently-seen message ids.
type YoutubeAdapter struct {
	apiBase    string
	liveChatID string
	apiKey     string
	client     *http.Client
	clk        clock.Clock

	mu        sync.Mutex
	connected atomic.Bool
	cancel    context.CancelFunc
	seen      []string
	seenSet   map[string]bool

	messages chan ChatMessage
	events   chan Event
}

// NewYoutubeAdapter polls liveChatID for new messages using apiKey.
func NewYoutubeAdapter(apiBase, liveChatID, apiKey string, clk clock.Clock) *YoutubeAdapter {
	return &YoutubeAdapter{
		apiBase:    apiBase,
		liveChatID: liveChatID,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		clk:        clk,
		seenSet:    make(map[string]bool),
		messages:   make(chan ChatMessage, youtubeMessageBufferSize),
		events:     make(chan Event, 8),
	}
}

func (a *YoutubeAdapter) Connect(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	a.connected.Store(true)

	go a.pollLoop(pollCtx)
	logger.Info("youtube adapter connected", "liveChatId", a.liveChatID)
	return nil
}

func (a *YoutubeAdapter) Disconnect() error {
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

func (a *YoutubeAdapter) IsConnected() bool { return a.connected.Load() }

func (a *YoutubeAdapter) Messages() <-chan ChatMessage { return a.messages }

func (a *YoutubeAdapter) Events() <-chan Event { return a.events }

func (a *YoutubeAdapter) pollLoop(ctx context.Context) {
	ticker := a.clk.NewTicker(youtubePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := a.pollOnce(ctx); err != nil {
				logger.Warn("youtube adapter poll failed", "err", err)
				a.connected.Store(false)
				a.events <- Event{Kind: EventError, Err: err}
				return
			}
		}
	}
}

func (a *YoutubeAdapter) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/liveChat/messages?liveChatId=%s&part=snippet,authorDetails&key=%s",
		a.apiBase, a.liveChatID, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube poll: unexpected status %d", resp.StatusCode)
	}

	var parsed youtubeLiveChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("youtube poll: decode: %w", err)
	}

	for _, item := range parsed.Items {
		if a.alreadySeen(item.ID) {
			continue
		}
		arrival := time.Now().UnixMilli()
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			arrival = t.UnixMilli()
		}

		var superchatAmount float64
		var superchatColor string
		if d := item.Snippet.SuperChatDetail; d != nil {
			superchatColor = d.Currency
			fmt.Sscanf(d.AmountMicros, "%f", &superchatAmount)
			superchatAmount /= 1_000_000
		}

		id, shortID := NewID()
		a.messages <- ChatMessage{
			ID:        id,
			ShortID:   shortID,
			Platform:  PlatformYoutube,
			Username:  item.AuthorDetails.DisplayName,
			Body:      item.Snippet.DisplayMessage,
			ArrivalMs: arrival,
			Metadata: Metadata{
				AuthorPhotoURL:  item.AuthorDetails.ProfileImageURL,
				Moderator:       item.AuthorDetails.IsChatModerator,
				Member:          item.AuthorDetails.IsChatSponsor,
				SuperchatAmount: superchatAmount,
				SuperchatColor:  superchatColor,
			},
		}
	}
	return nil
}

func (a *YoutubeAdapter) alreadySeen(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seenSet[id] {
		return true
	}
	a.seenSet[id] = true
	a.seen = append(a.seen, id)
	if len(a.seen) > youtubeDedupeWindow {
		evicted := a.seen[0]
		a.seen = a.seen[1:]
		delete(a.seenSet, evicted)
	}
	return false
}
