// Package knowledge defines knowledge documents and the chunks derived from
// them. Chunks carry their owning chatbot id; that tag is the retrieval
// isolation boundary and must always match the source document's.
package knowledge

import (
	"errors"
	"time"
)

// SourceType classifies where a document came from.
type SourceType string

const (
	SourceText    SourceType = "text"
	SourceFile    SourceType = "file"
	SourceURL     SourceType = "url"
	SourceQandA   SourceType = "qa"
	SourceSitemap SourceType = "sitemap"
)

// ValidSourceType reports whether s is a known source type.
func ValidSourceType(s SourceType) bool {
	switch s {
	case SourceText, SourceFile, SourceURL, SourceQandA, SourceSitemap:
		return true
	}
	return false
}

// Document is a source of knowledge belonging to exactly one chatbot.
type Document struct {
	ID         string     `json:"id"`
	ChatbotID  string     `json:"chatbot_id"`
	SourceType SourceType `json:"source_type"`
	Title      string     `json:"title"` // title, filename or URL depending on source
	SizeKB     int        `json:"size_kb"`
	ChunkCount int        `json:"chunk_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Chunk is a bounded slice of a document's text stored with an embedding for
// retrieval. Every chunk's chatbot id must match its document's.
type Chunk struct {
	ID         string     `json:"id"`
	ChatbotID  string     `json:"chatbot_id"`
	DocumentID string     `json:"document_id"`
	Index      int        `json:"index"`
	Content    string     `json:"content"`
	SourceType SourceType `json:"source_type"`
	Title      string     `json:"title"`
}

// ScoredChunk is a chunk returned from retrieval with its similarity score.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// IngestRequest holds the input for ingesting a document.
type IngestRequest struct {
	SourceType SourceType `json:"source_type"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
}

// Validate checks that an IngestRequest is well-formed.
func (r *IngestRequest) Validate() error {
	if r.Content == "" {
		return errors.New("content is required")
	}
	if !ValidSourceType(r.SourceType) {
		return errors.New("invalid source type: " + string(r.SourceType))
	}
	return nil
}
