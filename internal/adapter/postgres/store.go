package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/BotForge/internal/domain/chatbot"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const chatbotColumns = `id, account_id, name, status, plan_tier, instructions, model, knowledge_size_kb, created_at, updated_at`

func scanChatbot(row scannable) (chatbot.Chatbot, error) {
	var b chatbot.Chatbot
	err := row.Scan(&b.ID, &b.AccountID, &b.Name, &b.Status, &b.PlanTier,
		&b.Instructions, &b.Model, &b.KnowledgeSizeKB, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *Store) CreateChatbot(ctx context.Context, req chatbot.CreateRequest) (*chatbot.Chatbot, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO chatbots (account_id, name, plan_tier, instructions, model)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+chatbotColumns,
		req.AccountID, req.Name, req.PlanTier, req.Instructions, req.Model)

	b, err := scanChatbot(row)
	if err != nil {
		return nil, fmt.Errorf("create chatbot: %w", err)
	}
	return &b, nil
}

func (s *Store) GetChatbot(ctx context.Context, id string) (*chatbot.Chatbot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+chatbotColumns+` FROM chatbots WHERE id = $1 AND status != 'deleted'`, id)

	b, err := scanChatbot(row)
	if err != nil {
		return nil, notFoundWrap(err, "get chatbot %s", id)
	}
	return &b, nil
}

func (s *Store) ListChatbots(ctx context.Context, accountID string) ([]chatbot.Chatbot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+chatbotColumns+` FROM chatbots
		 WHERE account_id = $1 AND status != 'deleted' ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list chatbots: %w", err)
	}
	defer rows.Close()

	var bots []chatbot.Chatbot
	for rows.Next() {
		b, err := scanChatbot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chatbot: %w", err)
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

func (s *Store) UpdateChatbot(ctx context.Context, id string, req chatbot.UpdateRequest) (*chatbot.Chatbot, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE chatbots SET
		   name = COALESCE($2, name),
		   instructions = COALESCE($3, instructions),
		   model = COALESCE($4, model),
		   plan_tier = COALESCE($5, plan_tier),
		   updated_at = now()
		 WHERE id = $1 AND status != 'deleted'
		 RETURNING `+chatbotColumns,
		id, req.Name, req.Instructions, req.Model, req.PlanTier)

	b, err := scanChatbot(row)
	if err != nil {
		return nil, notFoundWrap(err, "update chatbot %s", id)
	}
	return &b, nil
}

func (s *Store) UpdateChatbotStatus(ctx context.Context, id string, status chatbot.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chatbots SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return execExpectOne(tag, err, "update chatbot %s status", id)
}

func (s *Store) AddKnowledgeSize(ctx context.Context, id string, deltaKB int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chatbots
		 SET knowledge_size_kb = GREATEST(knowledge_size_kb + $2, 0), updated_at = now()
		 WHERE id = $1`, id, deltaKB)
	return execExpectOne(tag, err, "add knowledge size for chatbot %s", id)
}
