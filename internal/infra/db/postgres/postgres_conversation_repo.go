package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/repository"
)

var (
	_ repository.ConversationRepository = (*PostgresConversationRepo)(nil)
	_ repository.MessageRepository      = (*PostgresMessageRepo)(nil)
)

type PostgresConversationRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresConversationRepo(pool *pgxpool.Pool) *PostgresConversationRepo {
	return &PostgresConversationRepo{pool: pool}
}

func (r *PostgresConversationRepo) Save(ctx context.Context, tx repository.Tx, conv *model.Conversation) error {
	const q = `
INSERT INTO conversations (id, user_id, title, summary, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  title=$3, summary=$4, updated_at=NOW();
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, conv.ID, conv.UserID, conv.Title, conv.Summary, conv.CreatedAt, conv.UpdatedAt)
	return err
}

func (r *PostgresConversationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	const q = `
SELECT id, user_id, title, COALESCE(summary, ''), created_at, updated_at
  FROM conversations WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var c model.Conversation
	if err := ex.QueryRow(ctx, q, id).Scan(&c.ID, &c.UserID, &c.Title, &c.Summary, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresConversationRepo) FindAllByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Conversation, error) {
	const q = `
SELECT id, user_id, title, COALESCE(summary, ''), created_at, updated_at
  FROM conversations WHERE user_id=$1 ORDER BY updated_at DESC;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Summary, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *PostgresConversationRepo) UpdateSummary(ctx context.Context, tx repository.Tx, id, summary string) error {
	const q = `UPDATE conversations SET summary=$2, updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type PostgresMessageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageRepo(pool *pgxpool.Pool) *PostgresMessageRepo {
	return &PostgresMessageRepo{pool: pool}
}

func (r *PostgresMessageRepo) Save(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	const q = `
INSERT INTO messages (id, conversation_id, message_index, sender, content, created_at)
VALUES ($1,$2,$3,$4,$5,NOW());
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, msg.ID, msg.ConversationID, msg.Index, msg.Sender, msg.Content)
	return err
}

func (r *PostgresMessageRepo) MaxIndex(ctx context.Context, tx repository.Tx, conversationID string) (int, error) {
	const q = `SELECT COALESCE(MAX(message_index), 0) FROM messages WHERE conversation_id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, q, conversationID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresMessageRepo) ListRecent(ctx context.Context, tx repository.Tx, conversationID string, n int) ([]*model.Message, error) {
	// The inner query grabs the newest n, the outer restores chronology.
	const q = `
SELECT id, conversation_id, message_index, sender, content, created_at FROM (
  SELECT id, conversation_id, message_index, sender, content, created_at
    FROM messages WHERE conversation_id=$1
   ORDER BY message_index DESC LIMIT $2
) sub ORDER BY message_index ASC;`
	return r.list(ctx, tx, q, conversationID, n)
}

func (r *PostgresMessageRepo) ListAll(ctx context.Context, tx repository.Tx, conversationID string) ([]*model.Message, error) {
	const q = `
SELECT id, conversation_id, message_index, sender, content, created_at
  FROM messages WHERE conversation_id=$1 ORDER BY message_index ASC;`
	return r.list(ctx, tx, q, conversationID)
}

func (r *PostgresMessageRepo) list(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.Message, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Index, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
