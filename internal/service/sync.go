package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/BotForge/internal/adapter/ws"
	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/port/broadcast"
	"github.com/Strob0t/BotForge/internal/port/messagequeue"
)

// SyncState is the lifecycle of one channel-integration sync.
type SyncState string

const (
	SyncPending   SyncState = "pending"
	SyncSyncing   SyncState = "syncing"
	SyncCompleted SyncState = "completed"
	SyncFailed    SyncState = "failed"
)

// SyncStatus is the externally visible state of one integration sync.
type SyncStatus struct {
	IntegrationID string    `json:"integration_id"`
	ChatbotID     string    `json:"chatbot_id"`
	Channel       string    `json:"channel"`
	State         SyncState `json:"state"`
	Attempt       int       `json:"attempt"`
	Error         string    `json:"error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SyncService tracks channel-integration syncs as a small state machine:
// pending -> syncing -> completed | failed, with bounded retries and a stale
// timeout. The sync work itself runs in external channel workers reached over
// the queue; this service owns only the state.
type SyncService struct {
	queue      messagequeue.Queue
	bcast      broadcast.Broadcaster
	maxRetries int
	staleAfter time.Duration

	mu    sync.Mutex
	syncs map[string]*SyncStatus
	now   func() time.Time // for testing
}

// NewSyncService creates a new SyncService.
func NewSyncService(queue messagequeue.Queue, bcast broadcast.Broadcaster, maxRetries int, staleAfter time.Duration) *SyncService {
	return &SyncService{
		queue:      queue,
		bcast:      bcast,
		maxRetries: maxRetries,
		staleAfter: staleAfter,
		syncs:      make(map[string]*SyncStatus),
		now:        time.Now,
	}
}

// Start begins a sync for one integration. An integration already pending or
// syncing is not restarted.
func (s *SyncService) Start(ctx context.Context, integrationID, chatbotID, channel string) (*SyncStatus, error) {
	s.mu.Lock()
	if cur, ok := s.syncs[integrationID]; ok && (cur.State == SyncPending || cur.State == SyncSyncing) {
		status := *cur
		s.mu.Unlock()
		return &status, nil
	}
	st := &SyncStatus{
		IntegrationID: integrationID,
		ChatbotID:     chatbotID,
		Channel:       channel,
		State:         SyncPending,
		Attempt:       1,
		UpdatedAt:     s.now(),
	}
	s.syncs[integrationID] = st
	status := *st
	s.mu.Unlock()

	if err := s.dispatch(ctx, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *SyncService) dispatch(ctx context.Context, st *SyncStatus) error {
	payload, err := json.Marshal(messagequeue.ChannelSyncStartPayload{
		IntegrationID: st.IntegrationID,
		ChatbotID:     st.ChatbotID,
		Channel:       st.Channel,
		Attempt:       st.Attempt,
	})
	if err != nil {
		return fmt.Errorf("marshal sync start: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectChannelSyncStart, payload); err != nil {
		return fmt.Errorf("dispatch sync for integration %s: %w", st.IntegrationID, err)
	}

	s.transition(ctx, st.IntegrationID, func(cur *SyncStatus) {
		cur.State = SyncSyncing
	})
	return nil
}

// HandleResult consumes a worker's sync outcome. Failures retry with a fresh
// dispatch until the attempt budget is spent.
func (s *SyncService) HandleResult(ctx context.Context, _ string, data []byte) error {
	var res messagequeue.ChannelSyncResultPayload
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("decode sync result: %w", err)
	}

	s.mu.Lock()
	cur, ok := s.syncs[res.IntegrationID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("sync result for unknown integration %s: %w", res.IntegrationID, domain.ErrNotFound)
	}
	retry := false
	if res.Status == "completed" {
		cur.State = SyncCompleted
		cur.Error = ""
	} else if cur.Attempt < s.maxRetries {
		cur.Attempt++
		cur.State = SyncPending
		cur.Error = res.Error
		retry = true
	} else {
		cur.State = SyncFailed
		cur.Error = res.Error
	}
	cur.UpdatedAt = s.now()
	status := *cur
	s.mu.Unlock()

	if retry {
		if err := s.dispatch(ctx, &status); err != nil {
			slog.Error("sync retry dispatch failed", "integration_id", status.IntegrationID, "error", err)
		}
		return nil
	}

	s.broadcastStatus(ctx, &status)
	return nil
}

// Status returns the tracked state for one integration.
func (s *SyncService) Status(integrationID string) (*SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.syncs[integrationID]
	if !ok {
		return nil, fmt.Errorf("integration %s: %w", integrationID, domain.ErrNotFound)
	}
	status := *cur
	return &status, nil
}

// SweepStale fails syncs stuck in pending or syncing longer than the stale
// timeout. Returns the integrations marked failed.
func (s *SyncService) SweepStale(ctx context.Context) []string {
	cutoff := s.now().Add(-s.staleAfter)

	s.mu.Lock()
	var stale []*SyncStatus
	for _, cur := range s.syncs {
		if (cur.State == SyncPending || cur.State == SyncSyncing) && cur.UpdatedAt.Before(cutoff) {
			cur.State = SyncFailed
			cur.Error = "sync timed out"
			cur.UpdatedAt = s.now()
			status := *cur
			stale = append(stale, &status)
		}
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, st := range stale {
		ids = append(ids, st.IntegrationID)
		s.broadcastStatus(ctx, st)
	}
	return ids
}

func (s *SyncService) transition(ctx context.Context, integrationID string, mutate func(*SyncStatus)) {
	s.mu.Lock()
	cur, ok := s.syncs[integrationID]
	if !ok {
		s.mu.Unlock()
		return
	}
	mutate(cur)
	cur.UpdatedAt = s.now()
	status := *cur
	s.mu.Unlock()

	s.broadcastStatus(ctx, &status)
}

func (s *SyncService) broadcastStatus(ctx context.Context, st *SyncStatus) {
	if s.bcast == nil {
		return
	}
	s.bcast.BroadcastEvent(ctx, st.ChatbotID, ws.EventSyncStatus, ws.SyncStatusEvent{
		ChatbotID:     st.ChatbotID,
		IntegrationID: st.IntegrationID,
		Channel:       st.Channel,
		Status:        string(st.State),
		Error:         st.Error,
	})
}
