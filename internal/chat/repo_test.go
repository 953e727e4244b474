package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Chat{}, &Message{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateChat_DefaultTitle(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	c, err := repo.CreateChat(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if c.Title != DefaultTitle {
		t.Fatalf("unexpected title %q", c.Title)
	}
	if len(c.ID) != 26 || c.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be assigned, got id=%q created_at=%v", c.ID, c.CreatedAt)
	}
}

func TestListChats_NewestFirstAndScopedToUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"old", "mid", "new"} {
		c := &Chat{UserID: "u1", Title: title, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("seed chat: %v", err)
		}
	}
	if _, err := repo.CreateChat(ctx, "u2", "someone else"); err != nil {
		t.Fatalf("seed other user: %v", err)
	}

	chats, err := repo.ListChats(ctx, "u1")
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 3 {
		t.Fatalf("expected 3 chats, got %d", len(chats))
	}
	if chats[0].Title != "new" || chats[1].Title != "mid" || chats[2].Title != "old" {
		t.Fatalf("unexpected order: %q %q %q", chats[0].Title, chats[1].Title, chats[2].Title)
	}
}

func TestMessages_OldestFirst(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.CreateChat(ctx, "u1", "t")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	for _, content := range []string{"one", "two", "three"} {
		if _, err := repo.AppendMessage(ctx, c.ID, RoleUser, content); err != nil {
			t.Fatalf("append %s: %v", content, err)
		}
	}

	msgs, err := repo.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "one" || msgs[2].Content != "three" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestAppendMessage_UnknownChatFails(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	if _, err := repo.AppendMessage(context.Background(), "01NOSUCHCHAT00000000000000", RoleUser, "hi"); err == nil {
		t.Fatalf("expected foreign key error for unknown chat")
	}
}

func TestRenameAndDelete(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	a, _ := repo.CreateChat(ctx, "u1", "a")
	b, _ := repo.CreateChat(ctx, "u1", "b")
	if _, err := repo.AppendMessage(ctx, a.ID, RoleUser, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := repo.RenameChat(ctx, b.ID, "renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := repo.GetChat(ctx, b.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.Title != "renamed" {
		t.Fatalf("unexpected title %q", got.Title)
	}

	if err := repo.DeleteChat(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetChat(ctx, a.ID); err != ErrChatNotFound {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	msgs, err := repo.ListMessages(ctx, a.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected messages to be deleted with chat, got %d", len(msgs))
	}

	// unknown ids are a no-op
	if err := repo.DeleteChat(ctx, "missing"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
}

func TestEnqueueJob_IdempotencyKeyStoresOnce(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	c, _ := repo.CreateChat(ctx, "u1", "")

	key := "k1"
	first := &Job{ID: "01JOB0000000000000000000001", UserID: "u1", ChatID: c.ID, Prompt: "p", IdempotencyKey: &key, Status: JobQueued}
	job, created, err := repo.EnqueueJob(ctx, first)
	if err != nil || !created {
		t.Fatalf("first enqueue: created=%v err=%v", created, err)
	}

	key2 := "k1"
	dup := &Job{ID: "01JOB0000000000000000000002", UserID: "u1", ChatID: c.ID, Prompt: "p", IdempotencyKey: &key2, Status: JobQueued}
	again, created, err := repo.EnqueueJob(ctx, dup)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if created || again.ID != job.ID {
		t.Fatalf("expected existing job %s, got %s created=%v", job.ID, again.ID, created)
	}

	msgs, _ := repo.ListMessages(ctx, c.ID)
	if len(msgs) != 1 || msgs[0].Role != RoleUser || msgs[0].Content != "p" {
		t.Fatalf("user message must be stored exactly once, got %+v", msgs)
	}

	if err := repo.MarkJobSucceeded(ctx, job.ID, "msg-1"); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	got, err := repo.GetJobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobSucceeded || got.ResultMessageID == nil || *got.ResultMessageID != "msg-1" {
		t.Fatalf("unexpected job state: %+v", got)
	}
}

func TestEnqueueJob_RollsBackWithMessage(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	// the message insert fails on the foreign key, so the job must not survive
	key := "k1"
	job := &Job{ID: "01JOB0000000000000000000003", UserID: "u1", ChatID: "missing", Prompt: "p", IdempotencyKey: &key, Status: JobQueued}
	if _, _, err := repo.EnqueueJob(ctx, job); err == nil {
		t.Fatalf("expected foreign key failure")
	}
	if _, err := repo.GetJobByID(ctx, job.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("job row leaked: %v", err)
	}
}
