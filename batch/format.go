package batch

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/linanwx/crawd/chatsource"
)

// FormatBatch renders a dispatched batch into the stable agent-facing
// string format of §4.4. dispatchAt is used to compute the batch's Δs
// age (the rounded age of the oldest message), shown only when it is
// greater than zero.
func FormatBatch(messages []chatsource.ChatMessage, dispatchAt time.Time) string {
	var b strings.Builder

	unit := "message"
	if len(messages) != 1 {
		unit = "messages"
	}

	ageSeconds := 0
	if len(messages) > 0 {
		oldest := messages[0].ArrivalMs
		for _, m := range messages {
			if m.ArrivalMs < oldest {
				oldest = m.ArrivalMs
			}
		}
		ageMs := dispatchAt.UnixMilli() - oldest
		ageSeconds = int(math.Round(float64(ageMs) / 1000.0))
	}

	if ageSeconds > 0 {
		fmt.Fprintf(&b, "[CRAWD:CHAT - %d %s, %ds]\n", len(messages), unit, ageSeconds)
	} else {
		fmt.Fprintf(&b, "[CRAWD:CHAT - %d %s]\n", len(messages), unit)
	}

	for _, m := range messages {
		platformTag := ""
		if m.Platform != chatsource.PlatformPumpfun {
			platformTag = fmt.Sprintf("[%s] ", strings.ToUpper(string(m.Platform)))
		}
		fmt.Fprintf(&b, "[%s] %s%s: %s\n", m.ShortID, platformTag, m.Username, m.Body)
	}

	if len(messages) > 1 {
		b.WriteString("(To reply to a specific message, prefix with its ID: [msgId] your reply)\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
