package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/BotForge/internal/domain/knowledge"
)

const documentColumns = `id, chatbot_id, source_type, title, size_kb, chunk_count, created_at`

func scanDocument(row scannable) (knowledge.Document, error) {
	var d knowledge.Document
	err := row.Scan(&d.ID, &d.ChatbotID, &d.SourceType, &d.Title, &d.SizeKB, &d.ChunkCount, &d.CreatedAt)
	return d, err
}

func (s *Store) CreateDocument(ctx context.Context, doc *knowledge.Document) (*knowledge.Document, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO documents (chatbot_id, source_type, title, size_kb, chunk_count)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+documentColumns,
		doc.ChatbotID, doc.SourceType, doc.Title, doc.SizeKB, doc.ChunkCount)

	d, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &d, nil
}

func (s *Store) GetDocument(ctx context.Context, chatbotID, id string) (*knowledge.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND chatbot_id = $2`,
		id, chatbotID)

	d, err := scanDocument(row)
	if err != nil {
		return nil, notFoundWrap(err, "get document %s", id)
	}
	return &d, nil
}

func (s *Store) ListDocuments(ctx context.Context, chatbotID string) ([]knowledge.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE chatbot_id = $1 ORDER BY created_at DESC`,
		chatbotID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []knowledge.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, chatbotID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND chatbot_id = $2`, id, chatbotID)
	return execExpectOne(tag, err, "delete document %s", id)
}

func (s *Store) ListDocumentIDs(ctx context.Context, chatbotID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM documents WHERE chatbot_id = $1`, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
