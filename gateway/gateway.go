// Package gateway is the outbound port to the external agent gateway:
// a single opaque RPC, triggerAgent(message) -> list[string], offered
// over two transport variants.
package gateway

import "context"

// AgentReply is the ordered list of free-form strings an agent
// invocation returns. Classification of each string (protocol ack,
// quiet ack, API error, misaligned) is the coordinator's job, not the
// gateway's.
type AgentReply []string

// TriggerAgent is the single outbound call every transport implements.
type TriggerAgent interface {
	Trigger(ctx context.Context, message string, idempotencyKey string, sessionKey string) (AgentReply, error)
}
