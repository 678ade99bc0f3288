package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/storage/database"
)

const messageSelect = "SELECT id, sender_id, recipient_id, body, sent_at, is_read FROM messages"

type (
	messageRepository struct {
		db *sqlx.DB
	}

	messageRow struct {
		ID          string    `db:"id"`
		SenderID    string    `db:"sender_id"`
		RecipientID string    `db:"recipient_id"`
		Body        string    `db:"body"`
		SentAt      time.Time `db:"sent_at"`
		IsRead      bool      `db:"is_read"`
	}
)

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *sqlx.DB) message.Repository {
	return &messageRepository{db: db}
}

func (row messageRow) toMessage() message.Message {
	return message.Message{
		ID:          row.ID,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		Body:        row.Body,
		SentAt:      row.SentAt.UTC(),
		IsRead:      row.IsRead,
	}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	m.ID = newID()
	q := "INSERT INTO messages (id, sender_id, recipient_id, body, sent_at, is_read) VALUES ($1, $2, $3, $4, $5, $6)"
	if _, err := repo.db.ExecContext(ctx, q, m.ID, m.SenderID, m.RecipientID, m.Body, m.SentAt.UTC(), m.IsRead); err != nil {
		if database.IsForeignKeyViolation(err, "messages_recipient_id_fkey") {
			return message.Message{}, message.ErrRecipientNotFound
		}
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return repo.GetMessage(ctx, m.ID)
}

func (repo *messageRepository) QueryMessages(ctx context.Context, filter message.QueryFilter) ([]message.Message, error) {
	var w where
	if filter.SenderID != "" {
		w.add("sender_id::text = ?", filter.SenderID)
	}
	if filter.RecipientID != "" {
		w.add("recipient_id::text = ?", filter.RecipientID)
	}
	if filter.UnreadOnly {
		w.add("NOT is_read")
	}
	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, query(messageSelect+w.String()+" ORDER BY sent_at DESC"), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toMessage())
	}
	return msgs, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id string) (message.Message, error) {
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, messageSelect+" WHERE id = $1", id); err != nil {
		return message.Message{}, trapNoRowsErr(err, message.ErrNotFound, "finding message")
	}
	return row.toMessage(), nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, id string) (message.Message, error) {
	var row messageRow
	q := "UPDATE messages SET is_read = true WHERE id = $1 RETURNING id, sender_id, recipient_id, body, sent_at, is_read"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return message.Message{}, trapNoRowsErr(err, message.ErrNotFound, "marking message read")
	}
	return row.toMessage(), nil
}

func (repo *messageRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM messages WHERE recipient_id::text = $1 AND NOT is_read"
	if err := repo.db.GetContext(ctx, &n, q, recipientID); err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return n, nil
}

func (repo *messageRepository) DeleteMessage(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, message.ErrNotFound, "deleting message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return message.ErrNotFound
	}
	return nil
}
