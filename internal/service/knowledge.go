package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	otelx "github.com/Strob0t/BotForge/internal/adapter/otel"
	"github.com/Strob0t/BotForge/internal/adapter/ws"
	"github.com/Strob0t/BotForge/internal/config"
	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/knowledge"
	"github.com/Strob0t/BotForge/internal/domain/plan"
	"github.com/Strob0t/BotForge/internal/port/broadcast"
	"github.com/Strob0t/BotForge/internal/port/cache"
	"github.com/Strob0t/BotForge/internal/port/database"
	"github.com/Strob0t/BotForge/internal/port/llm"
	"github.com/Strob0t/BotForge/internal/port/messagequeue"
	"github.com/Strob0t/BotForge/internal/port/vectorstore"
	"github.com/Strob0t/BotForge/internal/resilience"
)

const embeddingCacheTTL = 15 * time.Minute

// KnowledgeService ingests documents into the tenant-partitioned vector index
// and retrieves grounding chunks for turns.
type KnowledgeService struct {
	store    database.Store
	vectors  vectorstore.VectorStore
	embedder llm.EmbeddingProvider
	cache    cache.Cache
	queue    messagequeue.Queue
	bcast    broadcast.Broadcaster
	plans    *PlanService
	cfg      config.Knowledge
}

// NewKnowledgeService creates a new KnowledgeService. cache, queue and bcast
// are optional; a nil value disables embedding caching or event fan-out.
func NewKnowledgeService(
	store database.Store,
	vectors vectorstore.VectorStore,
	embedder llm.EmbeddingProvider,
	c cache.Cache,
	queue messagequeue.Queue,
	bcast broadcast.Broadcaster,
	plans *PlanService,
	cfg config.Knowledge,
) *KnowledgeService {
	return &KnowledgeService{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		cache:    c,
		queue:    queue,
		bcast:    bcast,
		plans:    plans,
		cfg:      cfg,
	}
}

// Ingest chunks, embeds and indexes one document for the chatbot, enforcing
// the plan's total knowledge size cap before any write.
func (s *KnowledgeService) Ingest(ctx context.Context, chatbotID string, req knowledge.IngestRequest) (*knowledge.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	bot, err := s.store.GetChatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}

	limits, err := s.plans.Resolve(plan.Tier(bot.PlanTier))
	if err != nil {
		return nil, err
	}

	sizeKB := (len(req.Content) + 1023) / 1024
	if bot.KnowledgeSizeKB+sizeKB > limits.MaxKnowledgeSizeKB {
		return nil, fmt.Errorf("ingest of %d KB would exceed the %d KB knowledge cap on the %s plan: %w",
			sizeKB, limits.MaxKnowledgeSizeKB, limits.Tier, domain.ErrQuotaExceeded)
	}

	pieces := knowledge.Split(req.Content, knowledge.ChunkerConfig{
		Size:    s.cfg.ChunkSize,
		Overlap: s.cfg.ChunkOverlap,
	})
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: document has no indexable content", domain.ErrValidation)
	}

	doc, err := s.store.CreateDocument(ctx, &knowledge.Document{
		ChatbotID:  chatbotID,
		SourceType: req.SourceType,
		Title:      req.Title,
		SizeKB:     sizeKB,
		ChunkCount: len(pieces),
	})
	if err != nil {
		return nil, err
	}

	ctx, span := otelx.StartIngestSpan(ctx, chatbotID, doc.ID)
	defer span.End()

	if err := s.index(ctx, bot, doc, pieces); err != nil {
		// Roll back the metadata row so a failed ingest leaves no trace.
		if delErr := s.store.DeleteDocument(ctx, chatbotID, doc.ID); delErr != nil {
			slog.Error("rollback document after failed index", "document_id", doc.ID, "error", delErr)
		}
		return nil, err
	}

	if err := s.store.AddKnowledgeSize(ctx, chatbotID, sizeKB); err != nil {
		slog.Error("update knowledge size", "chatbot_id", chatbotID, "error", err)
	}

	s.announce(ctx, chatbotID, doc)
	return doc, nil
}

// embed calls the provider under the configured per-call embed deadline.
func (s *KnowledgeService) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if s.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
	}
	return s.embedder.Embed(ctx, inputs)
}

func (s *KnowledgeService) index(ctx context.Context, bot *chatbot.Chatbot, doc *knowledge.Document, pieces []string) error {
	vectors, err := s.embed(ctx, pieces)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	points := make([]vectorstore.Point, 0, len(pieces))
	for i, content := range pieces {
		points = append(points, vectorstore.Point{
			ID:     chunkPointID(doc.ID, i),
			Vector: vectors[i],
			Chunk: knowledge.Chunk{
				ChatbotID:  bot.ID,
				DocumentID: doc.ID,
				Index:      i,
				Content:    content,
				SourceType: doc.SourceType,
				Title:      doc.Title,
			},
		})
	}

	if err := s.vectors.Upsert(ctx, points); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *KnowledgeService) announce(ctx context.Context, chatbotID string, doc *knowledge.Document) {
	if s.queue != nil {
		payload, err := json.Marshal(messagequeue.KnowledgeIngestedPayload{
			ChatbotID:  chatbotID,
			DocumentID: doc.ID,
			ChunkCount: doc.ChunkCount,
			SizeKB:     doc.SizeKB,
		})
		if err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectKnowledgeIngested, payload); err != nil {
				slog.Error("publish knowledge event", "document_id", doc.ID, "error", err)
			}
		}
	}
	if s.bcast != nil {
		s.bcast.BroadcastEvent(ctx, chatbotID, ws.EventKnowledge, ws.KnowledgeEvent{
			ChatbotID:  chatbotID,
			DocumentID: doc.ID,
			ChunkCount: doc.ChunkCount,
		})
	}
}

// Delete removes a document from the index and the metadata store, releasing
// its share of the knowledge size cap.
func (s *KnowledgeService) Delete(ctx context.Context, chatbotID, documentID string) error {
	doc, err := s.store.GetDocument(ctx, chatbotID, documentID)
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteByDocument(ctx, chatbotID, documentID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, chatbotID, documentID); err != nil {
		return err
	}
	if err := s.store.AddKnowledgeSize(ctx, chatbotID, -doc.SizeKB); err != nil {
		slog.Error("release knowledge size", "chatbot_id", chatbotID, "error", err)
	}
	return nil
}

// ListDocuments returns the chatbot's document metadata.
func (s *KnowledgeService) ListDocuments(ctx context.Context, chatbotID string) ([]knowledge.Document, error) {
	return s.store.ListDocuments(ctx, chatbotID)
}

// Search embeds the query and runs a tenant-filtered similarity search.
// A malformed chatbot id fails closed before any index access. Transient
// embedding or index failures are retried once before surfacing.
func (s *KnowledgeService) Search(ctx context.Context, chatbotID, query string) ([]knowledge.ScoredChunk, error) {
	if err := chatbot.ValidateID(chatbotID); err != nil {
		return nil, err
	}

	ctx, span := otelx.StartRetrievalSpan(ctx, chatbotID)
	defer span.End()

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	var chunks []knowledge.ScoredChunk
	err = resilience.RetryOnce(ctx, 200*time.Millisecond, func(ctx context.Context) error {
		var searchErr error
		chunks, searchErr = s.vectors.Search(ctx, chatbotID, vector, s.cfg.TopK, s.cfg.MinScore)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge search for chatbot %s: %w", chatbotID, err)
	}
	return chunks, nil
}

// embedQuery computes the query embedding with a short-TTL cache in front so
// repeated or retried questions skip the provider round-trip.
func (s *KnowledgeService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := embeddingCacheKey(query)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var vector []float32
			if err := json.Unmarshal(data, &vector); err == nil && len(vector) == s.embedder.Dimension() {
				return vector, nil
			}
		}
	}

	var vector []float32
	err := resilience.RetryOnce(ctx, 200*time.Millisecond, func(ctx context.Context) error {
		vectors, embedErr := s.embed(ctx, []string{query})
		if embedErr != nil {
			return embedErr
		}
		vector = vectors[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(vector); err == nil {
			_ = s.cache.Set(ctx, key, data, embeddingCacheTTL)
		}
	}
	return vector, nil
}

// SweepOrphans deletes index points whose document no longer exists in the
// metadata store. Returns the ids of the documents swept.
func (s *KnowledgeService) SweepOrphans(ctx context.Context, chatbotID string) ([]string, error) {
	if err := chatbot.ValidateID(chatbotID); err != nil {
		return nil, err
	}

	indexed, err := s.vectors.ListDocumentIDs(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	known, err := s.store.ListDocumentIDs(ctx, chatbotID)
	if err != nil {
		return nil, err
	}

	var swept []string
	for _, id := range indexed {
		if slices.Contains(known, id) {
			continue
		}
		if err := s.vectors.DeleteByDocument(ctx, chatbotID, id); err != nil {
			return swept, fmt.Errorf("sweep orphan document %s: %w", id, err)
		}
		swept = append(swept, id)
	}
	if len(swept) > 0 {
		slog.Info("swept orphaned index points", "chatbot_id", chatbotID, "documents", len(swept))
	}
	return swept, nil
}

func chunkPointID(documentID string, index int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s/%d", documentID, index))
	// Qdrant point ids must be UUIDs or unsigned ints; fold the hash into a
	// UUID-shaped string so re-ingesting a document overwrites its points.
	hexs := hex.EncodeToString(sum[:16])
	return hexs[0:8] + "-" + hexs[8:12] + "-" + hexs[12:16] + "-" + hexs[16:20] + "-" + hexs[20:32]
}

func embeddingCacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "emb:" + hex.EncodeToString(sum[:])
}
