package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/message"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(_ context.Context, m message.Message) (message.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[m.RecipientID]; !ok {
		return message.Message{}, message.ErrRecipientNotFound
	}
	m.ID = newID()
	repo.db.messages[m.ID] = &m
	return m, nil
}

func (repo *messageRepository) QueryMessages(_ context.Context, filter message.QueryFilter) ([]message.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]message.Message, 0)
	for _, m := range repo.db.messages {
		switch {
		case filter.SenderID != "" && m.SenderID != filter.SenderID:
		case filter.RecipientID != "" && m.RecipientID != filter.RecipientID:
		case filter.UnreadOnly && m.IsRead:
		default:
			msgs = append(msgs, *m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].SentAt.After(msgs[j].SentAt) })
	return msgs, nil
}

func (repo *messageRepository) GetMessage(_ context.Context, id string) (message.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.messages[id]; ok {
		return *m, nil
	}
	return message.Message{}, message.ErrNotFound
}

func (repo *messageRepository) MarkRead(_ context.Context, id string) (message.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m, ok := repo.db.messages[id]
	if !ok {
		return message.Message{}, message.ErrNotFound
	}
	m.IsRead = true
	return *m, nil
}

func (repo *messageRepository) CountUnread(_ context.Context, recipientID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, m := range repo.db.messages {
		if m.RecipientID == recipientID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (repo *messageRepository) DeleteMessage(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.messages[id]; !ok {
		return message.ErrNotFound
	}
	delete(repo.db.messages, id)
	return nil
}
