// Package http provides the HTTP API for the BotForge core: chatbot
// provisioning, knowledge management, the public turn endpoint and the
// operator dashboard surface.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/knowledge"
	"github.com/Strob0t/BotForge/internal/domain/turn"
	"github.com/Strob0t/BotForge/internal/service"
)

// bodyLimit caps JSON request bodies. Document ingestion gets a larger
// allowance than control-plane calls.
const (
	bodyLimit       = 1 << 20  // 1 MB
	ingestBodyLimit = 16 << 20 // 16 MB
)

// Handlers holds the services the HTTP API dispatches to.
type Handlers struct {
	chatbots  *service.ChatbotService
	knowledge *service.KnowledgeService
	usage     *service.UsageService
	syncs     *service.SyncService
	orch      *service.Orchestrator
	startedAt time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(
	chatbots *service.ChatbotService,
	knowledgeSvc *service.KnowledgeService,
	usageSvc *service.UsageService,
	syncs *service.SyncService,
	orch *service.Orchestrator,
) *Handlers {
	return &Handlers{
		chatbots:  chatbots,
		knowledge: knowledgeSvc,
		usage:     usageSvc,
		syncs:     syncs,
		orch:      orch,
		startedAt: time.Now(),
	}
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// ---------------------------------------------------------------------------
// Chatbots
// ---------------------------------------------------------------------------

func (h *Handlers) CreateChatbot(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatbot.CreateRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	bot, err := h.chatbots.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusCreated, bot)
}

func (h *Handlers) ListChatbots(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if !requireField(w, accountID, "account_id") {
		return
	}
	bots, err := h.chatbots.List(r.Context(), accountID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if bots == nil {
		bots = []chatbot.Chatbot{}
	}
	writeJSON(w, http.StatusOK, bots)
}

func (h *Handlers) UpdateChatbot(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatbot.UpdateRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	bot, err := h.chatbots.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *Handlers) ActivateChatbot(w http.ResponseWriter, r *http.Request) {
	bot, err := h.chatbots.Activate(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *Handlers) DeactivateChatbot(w http.ResponseWriter, r *http.Request) {
	bot, err := h.chatbots.Deactivate(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *Handlers) DeleteChatbot(w http.ResponseWriter, r *http.Request) {
	if err := h.chatbots.MarkDeleted(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Knowledge
// ---------------------------------------------------------------------------

func (h *Handlers) IngestDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[knowledge.IngestRequest](w, r, ingestBodyLimit)
	if !ok {
		return
	}
	doc, err := h.knowledge.Ingest(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.knowledge.Delete(r.Context(), urlParam(r, "id"), urlParam(r, "docID")); err != nil {
		writeDomainError(w, err, "document not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchKnowledge lets operators preview what retrieval returns for a query.
func (h *Handlers) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if !requireField(w, query, "q") {
		return
	}
	chunks, err := h.knowledge.Search(r.Context(), urlParam(r, "id"), query)
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	if chunks == nil {
		chunks = []knowledge.ScoredChunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

// SweepOrphans removes index points whose document row is gone.
func (h *Handlers) SweepOrphans(w http.ResponseWriter, r *http.Request) {
	swept, err := h.knowledge.SweepOrphans(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	if swept == nil {
		swept = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"swept": swept})
}

// ---------------------------------------------------------------------------
// Usage
// ---------------------------------------------------------------------------

func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.usage.Get(r.Context(), urlParam(r, "id"), r.URL.Query().Get("period"))
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ---------------------------------------------------------------------------
// Turns
// ---------------------------------------------------------------------------

type turnBody struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// StartTurn runs one conversational turn. With Accept: text/event-stream the
// answer streams as SSE deltas followed by a completed event; otherwise the
// finished result is returned as one JSON document.
func (h *Handlers) StartTurn(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[turnBody](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, body.SessionID, "session_id") || !requireField(w, body.Content, "content") {
		return
	}

	req := turn.Request{
		ChatbotID: urlParam(r, "id"),
		SessionID: body.SessionID,
		Content:   body.Content,
		Anonymous: body.Anonymous,
	}

	if acceptsSSE(r) {
		h.streamTurn(w, r, req)
		return
	}

	result, err := h.orch.HandleTurn(r.Context(), req, nil)
	if err != nil {
		writeDomainError(w, err, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) streamTurn(w http.ResponseWriter, r *http.Request, req turn.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink := func(delta string) {
		writeSSE(w, "delta", map[string]string{"text": delta})
		flusher.Flush()
	}

	result, err := h.orch.HandleTurn(r.Context(), req, sink)
	if err != nil {
		// Headers are gone; the error travels as a terminal event.
		writeSSE(w, "error", map[string]string{"error": sseErrorMessage(err)})
		flusher.Flush()
		return
	}

	writeSSE(w, "completed", result)
	flusher.Flush()
}

func acceptsSSE(r *http.Request) bool {
	return r.Header.Get("Accept") == "text/event-stream"
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// ---------------------------------------------------------------------------
// Channel sync
// ---------------------------------------------------------------------------

type syncBody struct {
	ChatbotID string `json:"chatbot_id"`
	Channel   string `json:"channel"`
}

func (h *Handlers) StartSync(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[syncBody](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, body.ChatbotID, "chatbot_id") || !requireField(w, body.Channel, "channel") {
		return
	}
	status, err := h.syncs.Start(r.Context(), urlParam(r, "id"), body.ChatbotID, body.Channel)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (h *Handlers) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.syncs.Status(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "integration not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
