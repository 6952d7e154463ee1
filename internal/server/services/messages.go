package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/server/events"
	"github.com/dmitrijs2005/saraha/internal/server/imagex"
	"github.com/dmitrijs2005/saraha/internal/server/models"
	"github.com/dmitrijs2005/saraha/internal/server/storage"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	MaxAttachments  = 10
)

type SendInput struct {
	SenderID    string
	ReceiverID  string
	Content     string
	Attachments [][]byte
}

type MessageService struct {
	Deps
}

func NewMessageService(d Deps) *MessageService {
	return &MessageService{Deps: d.withDefaults()}
}

// Send stores the attachments, persists the message and announces it. The
// event is best effort: a publish failure is logged and the message stands.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Attachments) == 0 {
		return nil, badRequest("Message content or attachments are required")
	}
	if len(in.Attachments) > MaxAttachments {
		return nil, badRequest(fmt.Sprintf("At most %d attachments are allowed", MaxAttachments))
	}

	if !validAccountID(in.ReceiverID) {
		return nil, common.NewError(common.ErrorNotFound, "Receiver not found")
	}
	if _, err := s.Repos.Accounts(s.DB).GetByID(ctx, in.ReceiverID, false); err != nil {
		return nil, notFound(err, "Receiver not found")
	}

	now := s.Now()
	id, err := ulid.New(ulid.Timestamp(now), ulid.DefaultEntropy())
	if err != nil {
		return nil, fmt.Errorf("error generating message id: %w", err)
	}

	types := make([]string, len(in.Attachments))
	for i, data := range in.Attachments {
		if types[i], err = imagex.Sniff(data, imagex.AttachmentTypes); err != nil {
			return nil, err
		}
	}

	prefix := fmt.Sprintf("messages/%s/%s", in.SenderID, in.ReceiverID)
	attachments := make([]models.Attachment, 0, len(in.Attachments))
	for i, data := range in.Attachments {
		key := storage.NewKey(prefix, now)
		if err := s.Store.Put(ctx, key, types[i], data); err != nil {
			s.deleteAttachments(ctx, attachments)
			return nil, fmt.Errorf("error storing attachment: %w", err)
		}
		url, err := s.Store.URL(ctx, key)
		if err != nil {
			s.deleteAttachments(ctx, append(attachments, models.Attachment{Key: key}))
			return nil, fmt.Errorf("error building attachment url: %w", err)
		}
		attachments = append(attachments, models.Attachment{URL: url, Key: key})
	}

	msg := &models.Message{
		ID:          id.String(),
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   now,
	}
	if err := s.Repos.Messages(s.DB).Create(ctx, msg); err != nil {
		s.deleteAttachments(ctx, attachments)
		return nil, fmt.Errorf("error saving message: %w", err)
	}

	ev := events.MessageSent{
		Type:        events.TypeMessageSent,
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		Content:     msg.Content,
		Attachments: len(msg.Attachments),
		CreatedAt:   msg.CreatedAt,
	}
	if err := s.Events.PublishMessageSent(ctx, ev); err != nil {
		s.Log.Warn(ctx, "message event not published", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

// List pages through the conversation between accountID and peerID, newest
// first. before is the id of the oldest message of the previous page.
func (s *MessageService) List(ctx context.Context, accountID, peerID, before string, limit int) ([]models.Message, error) {
	if before != "" {
		if _, err := ulid.ParseStrict(before); err != nil {
			return nil, badRequest("Invalid cursor")
		}
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	if !validAccountID(peerID) {
		return nil, common.NewError(common.ErrorNotFound, "User not found")
	}
	if _, err := s.Repos.Accounts(s.DB).GetByID(ctx, peerID, false); err != nil {
		return nil, notFound(err, "User not found")
	}

	msgs, err := s.Repos.Messages(s.DB).ListConversation(ctx, accountID, peerID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}

	// presigned URLs expire, so they are minted again for every page
	for i := range msgs {
		for j := range msgs[i].Attachments {
			att := &msgs[i].Attachments[j]
			if url, err := s.Store.URL(ctx, att.Key); err == nil {
				att.URL = url
			}
		}
	}
	return msgs, nil
}

func (s *MessageService) deleteAttachments(ctx context.Context, atts []models.Attachment) {
	for _, a := range atts {
		if err := s.Store.Delete(ctx, a.Key); err != nil {
			s.Log.Warn(ctx, "attachment not deleted", "key", a.Key, "error", err)
		}
	}
}

// validAccountID reports whether id is a well-formed account id (a UUID).
func validAccountID(id string) bool {
	return uuid.Validate(id) == nil
}
