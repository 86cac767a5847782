package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/contact"
	"github.com/Strob0t/BotForge/internal/domain/conversation"
	"github.com/Strob0t/BotForge/internal/domain/knowledge"
	"github.com/Strob0t/BotForge/internal/domain/usage"
	"github.com/Strob0t/BotForge/internal/port/llm"
	"github.com/Strob0t/BotForge/internal/port/messagequeue"
	"github.com/Strob0t/BotForge/internal/port/vectorstore"
)

// mockStore is an in-memory database.Store for service tests.
type mockStore struct {
	mu            sync.Mutex
	chatbots      map[string]*chatbot.Chatbot
	conversations map[string]*conversation.Conversation // keyed by id
	messages      map[string][]conversation.Message     // keyed by conversation id
	documents     map[string]*knowledge.Document
	usageRecords  map[string]*usage.Record // keyed by chatbotID+"/"+period
	invocations   []usage.ToolInvocation
	contacts      []contact.Contact

	failIncrement error
}

func newMockStore() *mockStore {
	return &mockStore{
		chatbots:      make(map[string]*chatbot.Chatbot),
		conversations: make(map[string]*conversation.Conversation),
		messages:      make(map[string][]conversation.Message),
		documents:     make(map[string]*knowledge.Document),
		usageRecords:  make(map[string]*usage.Record),
	}
}

// addChatbot seeds an active chatbot and returns its id.
func (m *mockStore) addChatbot(tier string) string {
	b := &chatbot.Chatbot{
		ID:        uuid.New().String(),
		AccountID: uuid.New().String(),
		Name:      "Support Bot",
		Status:    chatbot.StatusActive,
		PlanTier:  tier,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatbots[b.ID] = b
	return b.ID
}

func (m *mockStore) CreateChatbot(_ context.Context, req chatbot.CreateRequest) (*chatbot.Chatbot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &chatbot.Chatbot{
		ID:           uuid.New().String(),
		AccountID:    req.AccountID,
		Name:         req.Name,
		Status:       chatbot.StatusDraft,
		PlanTier:     req.PlanTier,
		Instructions: req.Instructions,
		Model:        req.Model,
		CreatedAt:    time.Now(),
	}
	m.chatbots[b.ID] = b
	out := *b
	return &out, nil
}

func (m *mockStore) GetChatbot(_ context.Context, id string) (*chatbot.Chatbot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.chatbots[id]
	if !ok || b.Status == chatbot.StatusDeleted {
		return nil, fmt.Errorf("chatbot %s: %w", id, domain.ErrNotFound)
	}
	out := *b
	return &out, nil
}

func (m *mockStore) ListChatbots(_ context.Context, accountID string) ([]chatbot.Chatbot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bots []chatbot.Chatbot
	for _, b := range m.chatbots {
		if b.AccountID == accountID && b.Status != chatbot.StatusDeleted {
			bots = append(bots, *b)
		}
	}
	return bots, nil
}

func (m *mockStore) UpdateChatbot(_ context.Context, id string, req chatbot.UpdateRequest) (*chatbot.Chatbot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.chatbots[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Instructions != nil {
		b.Instructions = *req.Instructions
	}
	if req.Model != nil {
		b.Model = *req.Model
	}
	if req.PlanTier != nil {
		b.PlanTier = *req.PlanTier
	}
	out := *b
	return &out, nil
}

func (m *mockStore) UpdateChatbotStatus(_ context.Context, id string, status chatbot.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.chatbots[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = status
	return nil
}

func (m *mockStore) AddKnowledgeSize(_ context.Context, id string, deltaKB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.chatbots[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.KnowledgeSizeKB += deltaKB
	if b.KnowledgeSizeKB < 0 {
		b.KnowledgeSizeKB = 0
	}
	return nil
}

func (m *mockStore) GetOrCreateConversation(_ context.Context, chatbotID, sessionID string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.ChatbotID == chatbotID && c.SessionID == sessionID {
			out := *c
			return &out, nil
		}
	}
	c := &conversation.Conversation{
		ID:        uuid.New().String(),
		ChatbotID: chatbotID,
		SessionID: sessionID,
		Mode:      conversation.ModeAuto,
		CreatedAt: time.Now(),
	}
	m.conversations[c.ID] = c
	out := *c
	return &out, nil
}

func (m *mockStore) SetConversationMode(_ context.Context, id string, mode conversation.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Mode = mode
	return nil
}

func (m *mockStore) ListMessages(_ context.Context, conversationID string) ([]conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]conversation.Message(nil), m.messages[conversationID]...), nil
}

func (m *mockStore) CreateMessage(_ context.Context, msg *conversation.Message) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *msg
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], created)
	return &created, nil
}

func (m *mockStore) CreateDocument(_ context.Context, doc *knowledge.Document) (*knowledge.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *doc
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now()
	m.documents[created.ID] = &created
	out := created
	return &out, nil
}

func (m *mockStore) GetDocument(_ context.Context, chatbotID, id string) (*knowledge.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.ChatbotID != chatbotID {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	out := *d
	return &out, nil
}

func (m *mockStore) ListDocuments(_ context.Context, chatbotID string) ([]knowledge.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []knowledge.Document
	for _, d := range m.documents {
		if d.ChatbotID == chatbotID {
			docs = append(docs, *d)
		}
	}
	return docs, nil
}

func (m *mockStore) DeleteDocument(_ context.Context, chatbotID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.ChatbotID != chatbotID {
		return domain.ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

func (m *mockStore) ListDocumentIDs(_ context.Context, chatbotID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, d := range m.documents {
		if d.ChatbotID == chatbotID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockStore) IncrementUsage(_ context.Context, chatbotID, period string, d usage.Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIncrement != nil {
		return m.failIncrement
	}
	key := chatbotID + "/" + period
	rec, ok := m.usageRecords[key]
	if !ok {
		rec = &usage.Record{ChatbotID: chatbotID, Period: period}
		m.usageRecords[key] = rec
	}
	rec.TokensIn += d.TokensIn
	rec.TokensOut += d.TokensOut
	rec.ToolCalls += d.ToolCalls
	rec.CreditsUsed += d.Credits
	rec.EstimatedCost += d.EstimatedCost
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) GetUsage(_ context.Context, chatbotID, period string) (*usage.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.usageRecords[chatbotID+"/"+period]; ok {
		out := *rec
		return &out, nil
	}
	return &usage.Record{ChatbotID: chatbotID, Period: period}, nil
}

func (m *mockStore) CreateToolInvocation(_ context.Context, inv *usage.ToolInvocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *inv
	created.ID = uuid.New().String()
	m.invocations = append(m.invocations, created)
	return nil
}

func (m *mockStore) CountToolInvocations(_ context.Context, conversationID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inv := range m.invocations {
		if inv.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) CreateContact(_ context.Context, c *contact.Contact) (*contact.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *c
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now()
	m.contacts = append(m.contacts, created)
	out := created
	return &out, nil
}

// mockQueue records published messages.
type mockQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newMockQueue() *mockQueue {
	return &mockQueue{published: make(map[string][][]byte)}
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[subject] = append(m.published[subject], data)
	return nil
}

func (m *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) count(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published[subject])
}

func (m *mockQueue) last(subject string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.published[subject]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// mockBroadcaster records broadcast events.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, _, eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

// scriptedProvider replays a fixed sequence of chat results.
type scriptedProvider struct {
	mu      sync.Mutex
	script  []llm.ChatResult
	errs    []error
	calls   int
	lastReq llm.ChatRequest
}

func (p *scriptedProvider) ChatStream(_ context.Context, req llm.ChatRequest, onDelta func(string) error) (*llm.ChatResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	p.lastReq = req

	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.script) {
		return &llm.ChatResult{Content: "fallback"}, nil
	}
	res := p.script[i]
	if res.Content != "" && len(res.ToolCalls) == 0 && onDelta != nil {
		if err := onDelta(res.Content); err != nil {
			return nil, err
		}
	}
	return &res, nil
}

// fixedEmbedder returns a constant vector per input.
type fixedEmbedder struct {
	dim   int
	calls int
	err   error
	errN  int // fail the first errN calls
}

func (e *fixedEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.calls++
	if e.err != nil && e.calls <= e.errN {
		return nil, e.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		v := make([]float32, e.dim)
		v[0] = float32(len(inputs[i]))
		out[i] = v
	}
	return out, nil
}

func (e *fixedEmbedder) Dimension() int { return e.dim }

// mockVectorStore is an in-memory tenant-partitioned index.
type mockVectorStore struct {
	mu      sync.Mutex
	points  map[string][]vectorstore.Point // keyed by chatbot id
	results []knowledge.ScoredChunk        // canned search results
	err     error
	errN    int
	calls   int
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{points: make(map[string][]vectorstore.Point)}
}

func (m *mockVectorStore) EnsureCollection(context.Context) error { return nil }

func (m *mockVectorStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, p := range points {
		m.points[p.Chunk.ChatbotID] = append(m.points[p.Chunk.ChatbotID], p)
	}
	return nil
}

func (m *mockVectorStore) Search(_ context.Context, chatbotID string, _ []float32, _ int, _ float64) ([]knowledge.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil && m.calls <= m.errN {
		return nil, m.err
	}
	// Canned results stand in for similarity ranking, but the tenant
	// boundary is enforced the way a real store would.
	var out []knowledge.ScoredChunk
	for _, c := range m.results {
		if c.ChatbotID == chatbotID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockVectorStore) DeleteByDocument(_ context.Context, chatbotID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.points[chatbotID][:0]
	for _, p := range m.points[chatbotID] {
		if p.Chunk.DocumentID != documentID {
			kept = append(kept, p)
		}
	}
	m.points[chatbotID] = kept
	return nil
}

func (m *mockVectorStore) ListDocumentIDs(_ context.Context, chatbotID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range m.points[chatbotID] {
		if _, ok := seen[p.Chunk.DocumentID]; !ok {
			seen[p.Chunk.DocumentID] = struct{}{}
			ids = append(ids, p.Chunk.DocumentID)
		}
	}
	return ids, nil
}

// mockCache is a TTL-less in-memory cache.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if ok {
		m.hits++
	}
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
