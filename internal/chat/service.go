package chat

import (
	"context"
	"strings"

	"github.com/suPer8Hu/gemini-chat/internal/ai"
	"github.com/suPer8Hu/gemini-chat/internal/common"
	"go.uber.org/zap"
)

// Generator produces an assistant reply; failures come back as ai.ErrorPrefix text.
type Generator interface {
	Generate(ctx context.Context, messages []ai.Message) string
}

// Service serves ownership-checked chat reads and the background generation path.
type Service struct {
	repo *Repo
	gen  Generator
	log  *zap.Logger
}

func NewService(repo *Repo, gen Generator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, gen: gen, log: log.Named("chat")}
}

func (s *Service) ValidateChatOwner(ctx context.Context, userID, chatID string) (*Chat, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		// hide existence
		return nil, ErrChatNotFound
	}
	return c, nil
}

func (s *Service) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	return s.repo.ListChats(ctx, userID)
}

func (s *Service) ListMessages(ctx context.Context, userID, chatID string) ([]Message, error) {
	if _, err := s.ValidateChatOwner(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, chatID)
}

// EnqueueUserMessage stores content as a user message of chatID and queues a
// job to answer it. A repeated idempotency key returns the first job and
// stores nothing.
func (s *Service) EnqueueUserMessage(ctx context.Context, userID, chatID, content string, idempotencyKey *string) (*Job, bool, error) {
	if _, err := s.ValidateChatOwner(ctx, userID, chatID); err != nil {
		return nil, false, err
	}
	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	return s.repo.EnqueueJob(ctx, &Job{
		ID:             jobID,
		UserID:         userID,
		ChatID:         chatID,
		Prompt:         content,
		IdempotencyKey: idempotencyKey,
		Status:         JobQueued,
	})
}

// GenerateAssistantReplyAndInsert runs generation over the persisted transcript
// and appends the reply. An ai.ErrorPrefix reply is stored like any other.
func (s *Service) GenerateAssistantReplyAndInsert(ctx context.Context, userID, chatID string) (string, *Message, error) {
	if _, err := s.ValidateChatOwner(ctx, userID, chatID); err != nil {
		return "", nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return "", nil, err
	}

	reply := s.gen.Generate(ctx, ToAIMessages(msgs))
	if ai.IsErrorReply(reply) {
		s.log.Warn("storing failed generation", zap.String("chat_id", chatID), zap.String("reply", reply))
	}

	assistantMsg, err := s.repo.AppendMessage(ctx, chatID, RoleAssistant, reply)
	if err != nil {
		return "", nil, err
	}
	return reply, assistantMsg, nil
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

func ToAIMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// TitleFromMessage derives a chat title from the first message of a conversation.
func TitleFromMessage(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return DefaultTitle
	}
	runes := []rune(content)
	if len(runes) > 30 {
		runes = runes[:30]
	}
	return string(runes) + "..."
}
