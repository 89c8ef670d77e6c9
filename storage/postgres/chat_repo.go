package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/storage"
)

type chatRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewChatRepo(db *pgxpool.Pool, log logger.ILogger) storage.IChatStorage {
	return &chatRepo{db: db, log: log}
}

const chatColumns = `id, order_id, user_id, provider_id, user_name, provider_name, last_message, last_message_time, created_at`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var c models.Chat
	err := row.Scan(&c.ID, &c.OrderID, &c.UserID, &c.ProviderID, &c.UserName, &c.ProviderName,
		&c.LastMessage, &c.LastMessageTime, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Participants = []string{c.UserID, c.ProviderID}
	return &c, nil
}

func (r *chatRepo) get(ctx context.Context, where string, arg string) (*models.Chat, error) {
	c, err := scanChat(r.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE `+where+` = $1`, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get chat", logger.String(where, arg), logger.Error(err))
		return nil, err
	}
	return c, nil
}

func (r *chatRepo) Get(ctx context.Context, id string) (*models.Chat, error) {
	return r.get(ctx, "id", id)
}

func (r *chatRepo) GetByOrder(ctx context.Context, orderID string) (*models.Chat, error) {
	return r.get(ctx, "order_id", orderID)
}

func (r *chatRepo) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE user_id = $1 OR provider_id = $1
		ORDER BY COALESCE(last_message_time, created_at) DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("failed to list chats", logger.String("user_id", userID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// AddMessage stores msg and moves the chat preview to it.
func (r *chatRepo) AddMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO messages (id, chat_id, order_id, sender_id, sender_name, recipient_id, content, type, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			msg.ID, msg.ChatID, msg.OrderID, msg.SenderID, msg.SenderName, msg.RecipientID,
			msg.Content, string(msg.Type), msg.Timestamp,
		)
		if err != nil {
			return err
		}
		res, err := tx.Exec(ctx,
			"UPDATE chats SET last_message = $2, last_message_time = $3 WHERE id = $1",
			msg.ChatID, msg.Content, msg.Timestamp,
		)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		err = mapErr(err)
		if !isExpected(err) {
			r.log.Error("failed to add message", logger.String("chat_id", msg.ChatID), logger.Error(err))
		}
		return nil, err
	}
	return msg, nil
}

func (r *chatRepo) Messages(ctx context.Context, chatID string) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, order_id, sender_id, sender_name, recipient_id, content, type, timestamp
		FROM messages
		WHERE chat_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		r.log.Error("failed to list messages", logger.String("chat_id", chatID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var (
			m   models.Message
			typ string
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.OrderID, &m.SenderID, &m.SenderName, &m.RecipientID,
			&m.Content, &typ, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Type = models.MessageType(typ)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
