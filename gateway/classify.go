package gateway

import (
	"regexp"
	"strings"
)

// ReplyKind classifies a single string in an AgentReply.
type ReplyKind int

const (
	KindProtocolAck ReplyKind = iota // "LIVESTREAM_REPLIED"
	KindQuietAck                     // "NO_REPLY"
	KindAPIError                     // rate-limit/HTTP-status-style string
	KindMisaligned                   // anything else: free-form text
)

const (
	ProtocolAckText = "LIVESTREAM_REPLIED"
	QuietAckText    = "NO_REPLY"
)

// apiErrorPattern matches rate-limit/HTTP-status-style strings, e.g.
// "429 rate limit exceeded" or "500 error: upstream unavailable".
var apiErrorPattern = regexp.MustCompile(`(?i)^\d{3}\s+(status code|error|rate limit|too many requests)`)

// ClassifyString classifies a single reply string after trimming,
// using a case-insensitive exact match for the two protocol acks.
func ClassifyString(s string) ReplyKind {
	trimmed := strings.TrimSpace(s)
	if apiErrorPattern.MatchString(trimmed) {
		return KindAPIError
	}
	if strings.EqualFold(trimmed, ProtocolAckText) {
		return KindProtocolAck
	}
	if strings.EqualFold(trimmed, QuietAckText) {
		return KindQuietAck
	}
	return KindMisaligned
}

// ClassifyReply scans every string in reply and reports whether any
// of them is a quiet ack, plus the list of misaligned (free-form)
// strings, each truncated to 80 characters for quoting in a
// correction prompt.
func ClassifyReply(reply AgentReply) (hasQuietAck bool, misaligned []string) {
	for _, s := range reply {
		switch ClassifyString(s) {
		case KindQuietAck:
			hasQuietAck = true
		case KindMisaligned:
			misaligned = append(misaligned, truncate(s, 80))
		}
	}
	return hasQuietAck, misaligned
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
