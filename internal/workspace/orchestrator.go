package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/gemini-chat/internal/ai"
	"github.com/suPer8Hu/gemini-chat/internal/chat"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// lateSaveTimeout bounds the assistant save once the submission context is done.
const lateSaveTimeout = 10 * time.Second

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrEmptyTitle   = errors.New("title is empty")
	ErrBusy         = errors.New("a submission is already in progress")
)

// Gateway is the persistence surface the orchestrator needs; *chat.Repo satisfies it.
type Gateway interface {
	ListChats(ctx context.Context, userID string) ([]chat.Chat, error)
	CreateChat(ctx context.Context, userID, title string) (*chat.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	RenameChat(ctx context.Context, chatID, title string) error
	ListMessages(ctx context.Context, chatID string) ([]chat.Message, error)
	AppendMessage(ctx context.Context, chatID, role, content string) (*chat.Message, error)
}

// Generator never fails; a failed generation is an ai.ErrorPrefix reply.
type Generator interface {
	Generate(ctx context.Context, messages []ai.Message) string
}

type Option func(*Orchestrator)

// WithTimeout bounds a whole submission, both joined operations included.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithTempIDs(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newTempID = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator sequences user actions against the gateway and keeps each
// user's State in the Store consistent with what is durably stored.
type Orchestrator struct {
	gateway   Gateway
	gen       Generator
	store     Store
	timeout   time.Duration
	newTempID func() string
	now       func() time.Time
	log       *zap.Logger
}

func New(gateway Gateway, gen Generator, store Store, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		gateway:   gateway,
		gen:       gen,
		store:     store,
		newTempID: uuid.NewString,
		now:       time.Now,
		log:       log.Named("workspace"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Current returns the user's state, loading the chat list on first use.
func (o *Orchestrator) Current(ctx context.Context, userID string) (State, error) {
	st, ok, err := o.store.Load(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("load workspace: %w", err)
	}
	if ok {
		return st, nil
	}

	chats, err := o.gateway.ListChats(ctx, userID)
	if err != nil {
		o.log.Error("failed to load chats", zap.String("user_id", userID), zap.Error(err))
		return State{UserID: userID}, fmt.Errorf("list chats: %w", err)
	}
	st = State{UserID: userID, Chats: chats}
	o.publish(ctx, st)
	return st, nil
}

// Submit takes one user message from raw text to a persisted user message
// followed by a persisted assistant reply.
//
// Failures before the user message is saved roll the optimistic entry back.
// A failed generation is not a submission failure: its ai.ErrorPrefix reply is
// persisted and shown like any other. That includes a generation cut short by
// the submission timeout or a cancelled ctx.
func (o *Orchestrator) Submit(ctx context.Context, userID, text string) (st State, err error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return State{}, ErrEmptyMessage
	}

	unlock, err := o.store.Lock(ctx, userID)
	if err != nil {
		return State{}, err
	}
	defer unlock()

	st, err = o.Current(ctx, userID)
	if err != nil {
		return st, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	// typing is cleared on every exit path, set or not
	defer func() {
		if st.Typing {
			st = SetTyping(st, false)
			o.publish(ctx, st)
		}
	}()

	tempID := o.newTempID()
	st = AddEntry(st, Pending(tempID, chat.Message{
		ChatID:    st.CurrentChatID,
		Role:      chat.RoleUser,
		Content:   content,
		CreatedAt: o.now(),
	}))
	o.publish(ctx, st)

	history := Transcript(st)
	log := o.log.With(zap.String("user_id", userID), zap.String("temp_id", tempID))

	chatID := st.CurrentChatID
	if chatID == "" {
		c, err := o.gateway.CreateChat(ctx, userID, chat.TitleFromMessage(content))
		if err != nil {
			st = Rollback(st, tempID)
			o.publish(ctx, st)
			log.Error("failed to create chat", zap.Error(err))
			return st, fmt.Errorf("create chat: %w", err)
		}
		st = AdoptChat(st, *c)
		chatID = c.ID
		o.publish(ctx, st)
	}
	log = log.With(zap.String("chat_id", chatID))

	st = SetTyping(st, true)
	o.publish(ctx, st)

	// Join, not race: both run to completion whatever the other does.
	var (
		saved *chat.Message
		reply string
		g     errgroup.Group
	)
	g.Go(func() error {
		m, err := o.gateway.AppendMessage(ctx, chatID, chat.RoleUser, content)
		if err != nil {
			return fmt.Errorf("save user message: %w", err)
		}
		saved = m
		return nil
	})
	g.Go(func() error {
		reply = o.gen.Generate(ctx, history)
		if err := ctx.Err(); err != nil && !ai.IsErrorReply(reply) {
			reply = ai.ErrorReply(fmt.Errorf("generate reply: %w", err))
		}
		return nil
	})
	// only a failed save rolls back; once the user message is stored a cut-short
	// generation is an error reply like any other
	if err := g.Wait(); err != nil {
		st = Rollback(st, tempID)
		o.publish(ctx, st)
		log.Error("submission rolled back", zap.Error(err))
		return st, err
	}

	st = Promote(st, tempID, *saved)
	o.publish(ctx, st)

	if ai.IsErrorReply(reply) {
		log.Warn("generation failed, keeping error reply", zap.String("reply", reply))
	}

	saveCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), lateSaveTimeout)
		defer cancel()
	}
	assistantMsg, err := o.gateway.AppendMessage(saveCtx, chatID, chat.RoleAssistant, reply)
	if err != nil {
		log.Error("failed to save assistant message", zap.Error(err))
		return st, fmt.Errorf("save assistant message: %w", err)
	}
	st = AddEntry(st, Persisted(*assistantMsg))
	o.publish(ctx, st)
	return st, nil
}

// Select makes chatID the active chat and loads its transcript. On failure the
// state is left as it was.
func (o *Orchestrator) Select(ctx context.Context, userID, chatID string) (State, error) {
	return o.mutate(ctx, userID, func(st State) (State, error) {
		msgs, err := o.gateway.ListMessages(ctx, chatID)
		if err != nil {
			o.log.Error("failed to load messages", zap.String("chat_id", chatID), zap.Error(err))
			return st, fmt.Errorf("list messages: %w", err)
		}
		return SelectChat(st, chatID, msgs), nil
	})
}

// NewChat returns to the new-chat condition without touching the store.
func (o *Orchestrator) NewChat(ctx context.Context, userID string) (State, error) {
	return o.mutate(ctx, userID, func(st State) (State, error) {
		return Reset(st), nil
	})
}

// Refresh reloads the chat list from the store.
func (o *Orchestrator) Refresh(ctx context.Context, userID string) (State, error) {
	return o.mutate(ctx, userID, func(st State) (State, error) {
		chats, err := o.gateway.ListChats(ctx, userID)
		if err != nil {
			o.log.Error("failed to load chats", zap.String("user_id", userID), zap.Error(err))
			return st, fmt.Errorf("list chats: %w", err)
		}
		st = st.clone()
		st.Chats = chats
		return st, nil
	})
}

func (o *Orchestrator) Delete(ctx context.Context, userID, chatID string) (State, error) {
	return o.mutate(ctx, userID, func(st State) (State, error) {
		if err := o.gateway.DeleteChat(ctx, chatID); err != nil {
			o.log.Error("failed to delete chat", zap.String("chat_id", chatID), zap.Error(err))
			return st, fmt.Errorf("delete chat: %w", err)
		}
		return RemoveChat(st, chatID), nil
	})
}

func (o *Orchestrator) Rename(ctx context.Context, userID, chatID, title string) (State, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return State{}, ErrEmptyTitle
	}
	return o.mutate(ctx, userID, func(st State) (State, error) {
		if err := o.gateway.RenameChat(ctx, chatID, title); err != nil {
			o.log.Error("failed to rename chat", zap.String("chat_id", chatID), zap.Error(err))
			return st, fmt.Errorf("rename chat: %w", err)
		}
		return RenameChat(st, chatID, title), nil
	})
}

// mutate runs fn under the workspace lock and saves the result only on success.
func (o *Orchestrator) mutate(ctx context.Context, userID string, fn func(State) (State, error)) (State, error) {
	unlock, err := o.store.Lock(ctx, userID)
	if err != nil {
		return State{}, err
	}
	defer unlock()

	st, err := o.Current(ctx, userID)
	if err != nil {
		return st, err
	}
	next, err := fn(st)
	if err != nil {
		return st, err
	}
	o.publish(ctx, next)
	return next, nil
}

// publish makes st visible to readers. It outlives a cancelled submission so
// the final state is never lost.
func (o *Orchestrator) publish(ctx context.Context, st State) {
	if err := o.store.Save(context.WithoutCancel(ctx), st); err != nil {
		o.log.Warn("failed to save workspace", zap.String("user_id", st.UserID), zap.Error(err))
	}
}
