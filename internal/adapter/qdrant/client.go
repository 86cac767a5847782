// Package qdrant implements the vector store port against the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/BotForge/internal/config"
	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/knowledge"
	"github.com/Strob0t/BotForge/internal/port/vectorstore"
	"github.com/Strob0t/BotForge/internal/resilience"
)

// Client talks to a Qdrant instance over its REST API. It implements
// vectorstore.VectorStore with one shared collection partitioned by a
// chatbot_id payload field.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a Qdrant client from config.
func NewClient(cfg config.Qdrant, dimension int) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  dimension,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollection creates the collection with the configured dimension if it
// does not exist. An existing collection with a different vector size is a
// deployment mismatch and fails with domain.ErrConfiguration.
func (c *Client) EnsureCollection(ctx context.Context) error {
	data, err := c.doRequest(ctx, http.MethodGet, "/collections/"+c.collection, nil)
	if err == nil {
		var info collectionInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("decode collection info: %w", err)
		}
		if got := info.Result.Config.Params.Vectors.Size; got != c.dimension {
			return fmt.Errorf("collection %s has dimension %d, want %d: %w",
				c.collection, got, c.dimension, domain.ErrConfiguration)
		}
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("get collection: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     c.dimension,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPut, "/collections/"+c.collection, body); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Payload index on the tenant tag keeps filtered search fast as the
	// collection grows.
	idxBody, err := json.Marshal(map[string]any{
		"field_name":   "chatbot_id",
		"field_schema": "keyword",
	})
	if err != nil {
		return fmt.Errorf("marshal payload index: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPut, "/collections/"+c.collection+"/index", idxBody); err != nil {
		return fmt.Errorf("create payload index: %w", err)
	}
	return nil
}

type wirePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert inserts or replaces points, tagging each with its chunk's chatbot id.
func (c *Client) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]wirePoint, 0, len(points))
	for _, p := range points {
		wire = append(wire, wirePoint{
			ID:     p.ID,
			Vector: p.Vector,
			Payload: map[string]any{
				"chatbot_id":  p.Chunk.ChatbotID,
				"document_id": p.Chunk.DocumentID,
				"chunk_index": p.Chunk.Index,
				"content":     p.Chunk.Content,
				"source_type": string(p.Chunk.SourceType),
				"title":       p.Chunk.Title,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": wire})
	if err != nil {
		return fmt.Errorf("marshal points: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPut, "/collections/"+c.collection+"/points?wait=true", body); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func tenantFilter(chatbotID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "chatbot_id", "match": map[string]any{"value": chatbotID}},
		},
	}
}

type searchResponse struct {
	Result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search runs a cosine-similarity query scoped to one chatbot. The tenant
// filter is applied server-side; results below minScore are dropped.
func (c *Client) Search(ctx context.Context, chatbotID string, vector []float32, topK int, minScore float64) ([]knowledge.ScoredChunk, error) {
	body, err := json.Marshal(map[string]any{
		"vector":          vector,
		"limit":           topK,
		"score_threshold": minScore,
		"filter":          tenantFilter(chatbotID),
		"with_payload":    true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	chunks := make([]knowledge.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		sc := knowledge.ScoredChunk{Score: r.Score}
		sc.ID = r.ID
		sc.ChatbotID = payloadString(r.Payload, "chatbot_id")
		sc.DocumentID = payloadString(r.Payload, "document_id")
		sc.Content = payloadString(r.Payload, "content")
		sc.SourceType = knowledge.SourceType(payloadString(r.Payload, "source_type"))
		sc.Title = payloadString(r.Payload, "title")
		if idx, ok := r.Payload["chunk_index"].(float64); ok {
			sc.Index = int(idx)
		}
		chunks = append(chunks, sc)
	}
	return chunks, nil
}

// DeleteByDocument removes every point derived from one document.
func (c *Client) DeleteByDocument(ctx context.Context, chatbotID, documentID string) error {
	filter := tenantFilter(chatbotID)
	filter["must"] = append(filter["must"].([]map[string]any),
		map[string]any{"key": "document_id", "match": map[string]any{"value": documentID}})

	body, err := json.Marshal(map[string]any{"filter": filter})
	if err != nil {
		return fmt.Errorf("marshal delete filter: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/collections/"+c.collection+"/points/delete?wait=true", body); err != nil {
		return fmt.Errorf("delete points for document %s: %w", documentID, err)
	}
	return nil
}

type scrollResponse struct {
	Result struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
		NextPageOffset any `json:"next_page_offset"`
	} `json:"result"`
}

// ListDocumentIDs scrolls the chatbot's points and returns the distinct
// document ids present in the index.
func (c *Client) ListDocumentIDs(ctx context.Context, chatbotID string) ([]string, error) {
	seen := make(map[string]struct{})
	var offset any

	for {
		req := map[string]any{
			"filter":       tenantFilter(chatbotID),
			"limit":        256,
			"with_payload": []string{"document_id"},
		}
		if offset != nil {
			req["offset"] = offset
		}
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshal scroll: %w", err)
		}

		data, err := c.doRequest(ctx, http.MethodPost, "/collections/"+c.collection+"/points/scroll", body)
		if err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}

		var resp scrollResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("decode scroll response: %w", err)
		}

		for _, p := range resp.Result.Points {
			if id := payloadString(p.Payload, "document_id"); id != "" {
				seen[id] = struct{}{}
			}
		}

		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}

func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// statusError carries the HTTP status of a failed Qdrant call.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant API error %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return &statusError{code: resp.StatusCode, body: string(data)}
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(ctx, call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(ctx); err != nil {
		return nil, err
	}
	return result, nil
}
