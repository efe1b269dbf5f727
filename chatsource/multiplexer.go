package chatsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/logger"
)

const (
	reconnectBaseDelay = 5 * time.Second
	reconnectMaxDelay  = 60 * time.Second
	reconnectMaxTries  = 5
)

// Multiplexer holds the registered adapters and fans every message
// from every adapter into a single normalized callback, reconnecting
// disconnected adapters with exponential backoff.
type Multiplexer struct {
	clk       clock.Clock
	onMessage func(ChatMessage)

	mu       sync.Mutex
	adapters map[string]Adapter
	attempts map[string]int
}

// NewMultiplexer builds a Multiplexer. onMessage is invoked for every
// inbound message across all adapters; it must not block.
func NewMultiplexer(clk clock.Clock, onMessage func(ChatMessage)) *Multiplexer {
	return &Multiplexer{
		clk:       clk,
		onMessage: onMessage,
		adapters:  make(map[string]Adapter),
		attempts:  make(map[string]int),
	}
}

// RegisterAdapter adds an adapter under key; keys are the platform
// name plus an optional discriminator for multi-channel setups.
func (m *Multiplexer) RegisterAdapter(key string, a Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[key] = a
}

// ConnectAll connects every registered adapter concurrently and starts
// each one's watch loop. It returns the first connection error, but
// every adapter is still given a chance to connect before returning.
func (m *Multiplexer) ConnectAll(ctx context.Context) error {
	m.mu.Lock()
	snapshot := make(map[string]Adapter, len(m.adapters))
	for k, a := range m.adapters {
		snapshot[k] = a
	}
	m.mu.Unlock()

	var g errgroup.Group
	for key, adapter := range snapshot {
		key, adapter := key, adapter
		g.Go(func() error {
			if err := adapter.Connect(ctx); err != nil {
				logger.Error("chatsource adapter connect failed", "adapter", key, "err", err)
				return fmt.Errorf("connect %s: %w", key, err)
			}
			go m.watch(ctx, key, adapter)
			return nil
		})
	}
	return g.Wait()
}

// DisconnectAll disconnects every registered adapter in turn and
// returns the first error encountered; a failing adapter does not stop
// the others from being disconnected.
func (m *Multiplexer) DisconnectAll() error {
	m.mu.Lock()
	snapshot := make(map[string]Adapter, len(m.adapters))
	for k, a := range m.adapters {
		snapshot[k] = a
	}
	m.mu.Unlock()

	var firstErr error
	for key, adapter := range snapshot {
		if err := adapter.Disconnect(); err != nil {
			logger.Error("chatsource adapter disconnect failed", "adapter", key, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Connected reports the keys of adapters currently connected.
func (m *Multiplexer) Connected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k, a := range m.adapters {
		if a.IsConnected() {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *Multiplexer) watch(ctx context.Context, key string, a Adapter) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.Messages():
			if !ok {
				return
			}
			m.onMessage(msg)
		case ev, ok := <-a.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case EventConnected:
				m.resetAttempts(key)
			case EventDisconnected, EventError:
				logger.Warn("chatsource adapter disconnected", "adapter", key, "err", ev.Err)
				m.scheduleReconnect(ctx, key, a)
			}
		}
	}
}

func (m *Multiplexer) resetAttempts(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[key] = 0
}

func (m *Multiplexer) scheduleReconnect(ctx context.Context, key string, a Adapter) {
	m.mu.Lock()
	m.attempts[key]++
	tries := m.attempts[key]
	m.mu.Unlock()

	if tries > reconnectMaxTries {
		logger.Error("chatsource adapter giving up reconnect", "adapter", key, "attempts", tries-1)
		return
	}

	delay := reconnectBaseDelay
	for i := 1; i < tries; i++ {
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
			break
		}
	}

	logger.Info("chatsource adapter scheduling reconnect", "adapter", key, "attempt", tries, "delay", delay)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-m.clk.After(delay):
		}
		if err := a.Connect(ctx); err != nil {
			logger.Error("chatsource adapter reconnect failed", "adapter", key, "attempt", tries, "err", err)
			m.scheduleReconnect(ctx, key, a)
			return
		}
		go m.watch(ctx, key, a)
	}()
}
