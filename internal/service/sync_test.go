package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/port/messagequeue"
)

func syncResult(integrationID, status, errMsg string) []byte {
	data, _ := json.Marshal(messagequeue.ChannelSyncResultPayload{
		IntegrationID: integrationID,
		Status:        status,
		Error:         errMsg,
	})
	return data
}

func TestSyncHappyPath(t *testing.T) {
	queue := newMockQueue()
	bcast := &mockBroadcaster{}
	svc := NewSyncService(queue, bcast, 3, time.Hour)

	st, err := svc.Start(context.Background(), "int-1", "bot-1", "whatsapp")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.State != SyncPending || st.Attempt != 1 {
		t.Errorf("start status = %+v", st)
	}
	if queue.count(messagequeue.SubjectChannelSyncStart) != 1 {
		t.Fatal("sync not dispatched")
	}

	// The dispatch moved the tracked state to syncing.
	cur, _ := svc.Status("int-1")
	if cur.State != SyncSyncing {
		t.Errorf("state = %q, want syncing", cur.State)
	}

	if err := svc.HandleResult(context.Background(), messagequeue.SubjectChannelSyncResult, syncResult("int-1", "completed", "")); err != nil {
		t.Fatalf("HandleResult: %v", err)
	}
	cur, _ = svc.Status("int-1")
	if cur.State != SyncCompleted || cur.Error != "" {
		t.Errorf("final status = %+v", cur)
	}
}

func TestSyncDoesNotRestartInFlight(t *testing.T) {
	queue := newMockQueue()
	svc := NewSyncService(queue, nil, 3, time.Hour)

	if _, err := svc.Start(context.Background(), "int-1", "bot-1", "telegram"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Start(context.Background(), "int-1", "bot-1", "telegram"); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if n := queue.count(messagequeue.SubjectChannelSyncStart); n != 1 {
		t.Errorf("dispatches = %d, want 1 (no restart while in flight)", n)
	}
}

func TestSyncRetriesUntilBudgetSpent(t *testing.T) {
	queue := newMockQueue()
	svc := NewSyncService(queue, nil, 3, time.Hour)

	if _, err := svc.Start(context.Background(), "int-1", "bot-1", "whatsapp"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Two failures re-dispatch; the third exhausts the budget.
	for i := 0; i < 2; i++ {
		if err := svc.HandleResult(context.Background(), "", syncResult("int-1", "failed", "token expired")); err != nil {
			t.Fatalf("HandleResult %d: %v", i, err)
		}
	}
	if n := queue.count(messagequeue.SubjectChannelSyncStart); n != 3 {
		t.Fatalf("dispatches = %d, want 3 (initial + 2 retries)", n)
	}

	if err := svc.HandleResult(context.Background(), "", syncResult("int-1", "failed", "token expired")); err != nil {
		t.Fatalf("final HandleResult: %v", err)
	}
	cur, _ := svc.Status("int-1")
	if cur.State != SyncFailed || cur.Error != "token expired" || cur.Attempt != 3 {
		t.Errorf("final status = %+v", cur)
	}
	if n := queue.count(messagequeue.SubjectChannelSyncStart); n != 3 {
		t.Errorf("dispatches after exhaustion = %d, want 3", n)
	}

	// A failed sync can be started again from scratch.
	st, err := svc.Start(context.Background(), "int-1", "bot-1", "whatsapp")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if st.Attempt != 1 {
		t.Errorf("restart attempt = %d, want 1", st.Attempt)
	}
}

func TestSyncResultForUnknownIntegration(t *testing.T) {
	svc := NewSyncService(newMockQueue(), nil, 3, time.Hour)

	err := svc.HandleResult(context.Background(), "", syncResult("ghost", "completed", ""))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSyncSweepStale(t *testing.T) {
	queue := newMockQueue()
	svc := NewSyncService(queue, nil, 3, 30*time.Minute)

	base := time.Now()
	svc.now = func() time.Time { return base }

	if _, err := svc.Start(context.Background(), "int-old", "bot-1", "whatsapp"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	if _, err := svc.Start(context.Background(), "int-fresh", "bot-1", "telegram"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.now = func() time.Time { return base.Add(35 * time.Minute) }
	swept := svc.SweepStale(context.Background())
	if len(swept) != 1 || swept[0] != "int-old" {
		t.Fatalf("swept = %v, want [int-old]", swept)
	}

	old, _ := svc.Status("int-old")
	if old.State != SyncFailed || old.Error != "sync timed out" {
		t.Errorf("stale status = %+v", old)
	}
	fresh, _ := svc.Status("int-fresh")
	if fresh.State != SyncSyncing {
		t.Errorf("fresh status = %+v", fresh)
	}
}
