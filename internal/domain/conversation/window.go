package conversation

// minKeptPairs is the number of trailing exchanges (a user message plus its
// replies) that are always kept regardless of the token budget.
const minKeptPairs = 3

// EstimateTokens returns an approximate token count for a string.
// Uses the heuristic 1 token ~= 4 characters; deliberately not an exact
// tokenizer call, to keep truncation off the request's latency path.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		return 1
	}
	return n
}

func windowTokens(msgs []Message) int {
	total := 0
	for i := range msgs {
		total += EstimateTokens(msgs[i].Content)
	}
	return total
}

// TruncateWindow trims a chronological message history to fit budget tokens
// while preserving coherent exchanges.
//
// An exchange starts at a user message and spans every reply up to the next
// user message, so histories with consecutive assistant messages (operator
// replies in manual mode) are never split mid-exchange. The last minKeptPairs
// exchanges are always kept, over budget or not. While the window exceeds the
// budget, the oldest remaining exchange is dropped whole. Messages are never
// reordered; a trailing unanswered user message sticks to the newest exchange.
//
// The operation is idempotent: truncating an already-truncated window returns
// it unchanged.
func TruncateWindow(msgs []Message, budget int) []Message {
	floorStart := keepFloorStart(msgs)
	start := 0
	for start < floorStart && windowTokens(msgs[start:]) > budget {
		start = nextExchangeStart(msgs, start)
		if start > floorStart {
			start = floorStart
		}
	}
	return msgs[start:]
}

// keepFloorStart returns the index where the last minKeptPairs exchanges
// begin. A trailing user message still awaiting its reply does not count as
// an exchange of its own.
func keepFloorStart(msgs []Message) int {
	seen := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != RoleUser || i == len(msgs)-1 {
			continue
		}
		seen++
		if seen == minKeptPairs {
			return i
		}
	}
	return 0
}

// nextExchangeStart returns the index of the first exchange after the one
// beginning at from.
func nextExchangeStart(msgs []Message, from int) int {
	for i := from + 1; i < len(msgs); i++ {
		if msgs[i].Role == RoleUser {
			return i
		}
	}
	return len(msgs)
}
