package conversation_test

import (
	"strings"
	"testing"

	"github.com/Strob0t/BotForge/internal/domain/conversation"
)

// history builds n alternating user/assistant messages of contentLen chars each.
func history(n, contentLen int) []conversation.Message {
	msgs := make([]conversation.Message, n)
	for i := range msgs {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		msgs[i] = conversation.Message{Role: role, Content: strings.Repeat("x", contentLen)}
	}
	return msgs
}

func TestTruncateWindowKeepsFloorOverBudget(t *testing.T) {
	// 40 messages, 2000 chars each: ~500 tokens per message. Even the last
	// 6 messages exceed a 2000 token budget, so the floor wins.
	msgs := history(40, 2000)
	got := conversation.TruncateWindow(msgs, 2000)

	if len(got) != 6 {
		t.Fatalf("expected floor of 6 messages, got %d", len(got))
	}
	for i := range got {
		if got[i].Content != msgs[34+i].Content || got[i].Role != msgs[34+i].Role {
			t.Fatalf("expected the last 6 messages in order, mismatch at %d", i)
		}
	}
}

func TestTruncateWindowProgressiveDrop(t *testing.T) {
	// 40 messages, 400 chars each: 100 tokens per message. A 2000 token
	// budget fits 20 messages, so the oldest 10 pairs are dropped.
	msgs := history(40, 400)
	got := conversation.TruncateWindow(msgs, 2000)

	if len(got) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(got))
	}
	if got[0].Role != conversation.RoleUser {
		t.Error("window must start on a user message")
	}
	if len(got)%2 != 0 {
		t.Error("window must contain whole pairs")
	}
}

func TestTruncateWindowUnderBudgetUnchanged(t *testing.T) {
	msgs := history(10, 40)
	got := conversation.TruncateWindow(msgs, 2000)
	if len(got) != 10 {
		t.Fatalf("expected untouched history, got %d messages", len(got))
	}
}

func TestTruncateWindowIdempotent(t *testing.T) {
	for _, n := range []int{4, 6, 7, 20, 39, 40} {
		msgs := history(n, 400)
		once := conversation.TruncateWindow(msgs, 1000)
		twice := conversation.TruncateWindow(once, 1000)
		if len(once) != len(twice) {
			t.Errorf("n=%d: truncate not idempotent: %d then %d messages", n, len(once), len(twice))
		}
	}
}

func TestTruncateWindowShortHistory(t *testing.T) {
	msgs := history(2, 9000)
	got := conversation.TruncateWindow(msgs, 100)
	if len(got) != 2 {
		t.Fatalf("a single pair is never dropped, got %d messages", len(got))
	}
}

func TestTruncateWindowKeepsSameRoleRunsTogether(t *testing.T) {
	// Manual-mode histories have runs of consecutive operator replies; the
	// whole exchange drops together, never split mid-run.
	msg := func(role conversation.Role) conversation.Message {
		return conversation.Message{Role: role, Content: strings.Repeat("x", 400)}
	}
	u, a := conversation.RoleUser, conversation.RoleAssistant
	msgs := []conversation.Message{
		msg(u), msg(a), msg(a), // visitor question, two operator replies
		msg(u), msg(a),
		msg(u), msg(a), msg(a), msg(a),
		msg(u), msg(a),
		msg(u), msg(a),
	}

	// 13 messages at 100 tokens each; a 900 token budget drops the two
	// oldest exchanges (5 messages) and keeps the rest whole.
	got := conversation.TruncateWindow(msgs, 900)

	if len(got) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(got))
	}
	if got[0].Role != conversation.RoleUser {
		t.Error("window must start on a user message")
	}
	wantRoles := []conversation.Role{u, a, a, a, u, a, u, a}
	for i, want := range wantRoles {
		if got[i].Role != want {
			t.Fatalf("role[%d] = %q, want %q (reply run was split)", i, got[i].Role, want)
		}
	}
}

func TestTruncateWindowOddTrailingUser(t *testing.T) {
	// Odd history: trailing user message awaiting a reply sticks to the
	// newest pairs and pairs are still dropped two at a time.
	msgs := history(41, 400)
	got := conversation.TruncateWindow(msgs, 2000)

	if got[len(got)-1].Role != conversation.RoleUser {
		t.Error("trailing user message must survive truncation")
	}
	if len(got)%2 != 1 {
		t.Errorf("expected odd window for odd history, got %d", len(got))
	}
	if got[0].Role != conversation.RoleUser {
		t.Error("window must start on a user message")
	}
}
