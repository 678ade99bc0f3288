package message

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("message not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfMessage       = errors.New("you cannot send a message to yourself")
)

type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
	IsRead      bool      `json:"is_read"`
}

type NewMessage struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	Body        string `json:"body" validate:"required,notblank,max=5000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.RecipientID = core.CleanString(nm.RecipientID)
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

type QueryFilter struct {
	SenderID    string
	RecipientID string
	UnreadOnly  bool
}

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		// QueryMessages returns the messages matching filter, most recent first.
		QueryMessages(ctx context.Context, filter QueryFilter) ([]Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		MarkRead(ctx context.Context, id string) (Message, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
		DeleteMessage(ctx context.Context, id string) error
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Send(ctx context.Context, senderID string, nm NewMessage) (Message, error)
		Inbox(ctx context.Context, userID string, unreadOnly bool) ([]Message, error)
		Sent(ctx context.Context, userID string) ([]Message, error)
		UnreadCount(ctx context.Context, userID string) (int, error)
		// Get returns the message if userID sent or received it.
		Get(ctx context.Context, userID, id string) (Message, error)
		// MarkRead marks a received message as read.
		MarkRead(ctx context.Context, userID, id string) (Message, error)
		// Delete deletes a message sent or received by userID.
		Delete(ctx context.Context, userID, id string) error
	}

	service struct {
		repo    Repository
		userSvc UserGetter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc UserGetter) Service {
	return &service{repo: repo, userSvc: userSvc}
}

func (svc *service) Send(ctx context.Context, senderID string, nm NewMessage) (Message, error) {
	if nm.RecipientID == senderID {
		return Message{}, core.NewValidationError(ErrSelfMessage, core.FieldError{Field: "recipient_id", Error: ErrSelfMessage.Error()})
	}
	if _, err := svc.userSvc.GetByID(ctx, nm.RecipientID); err != nil {
		if core.IsNotFound(err) {
			return Message{}, core.NewValidationError(ErrRecipientNotFound, core.FieldError{Field: "recipient_id", Error: ErrRecipientNotFound.Error()})
		}
		return Message{}, errors.Wrap(err, "finding recipient")
	}
	return svc.repo.CreateMessage(ctx, Message{
		SenderID:    senderID,
		RecipientID: nm.RecipientID,
		Body:        nm.Body,
		SentAt:      time.Now().UTC(),
	})
}

func (svc *service) Inbox(ctx context.Context, userID string, unreadOnly bool) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, QueryFilter{RecipientID: userID, UnreadOnly: unreadOnly})
}

func (svc *service) Sent(ctx context.Context, userID string) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, QueryFilter{SenderID: userID})
}

func (svc *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

func (svc *service) Get(ctx context.Context, userID, id string) (Message, error) {
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if m.SenderID != userID && m.RecipientID != userID {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) (Message, error) {
	m, err := svc.Get(ctx, userID, id)
	if err != nil {
		return Message{}, err
	}
	if m.RecipientID != userID {
		return Message{}, core.ErrForbidden
	}
	if m.IsRead {
		return m, nil
	}
	return svc.repo.MarkRead(ctx, id)
}

func (svc *service) Delete(ctx context.Context, userID, id string) error {
	if _, err := svc.Get(ctx, userID, id); err != nil {
		return err
	}
	return svc.repo.DeleteMessage(ctx, id)
}
