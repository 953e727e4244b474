package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/gemini-chat/internal/ai"
	"github.com/suPer8Hu/gemini-chat/internal/chat"
	"github.com/suPer8Hu/gemini-chat/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type cannedGenerator struct {
	reply string
	seen  []ai.Message
}

func (g *cannedGenerator) Generate(ctx context.Context, messages []ai.Message) string {
	g.seen = messages
	return g.reply
}

func setup(t *testing.T, gen chat.Generator) (*chat.Repo, *Processor) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := chat.NewRepo(gdb)
	return repo, NewProcessor(repo, chat.NewService(repo, gen, zap.NewNop()), zap.NewNop())
}

func queuedJob(t *testing.T, repo *chat.Repo, id, userID, chatID string) {
	t.Helper()
	if err := repo.CreateJob(context.Background(), &chat.Job{
		ID: id, UserID: userID, ChatID: chatID, Prompt: "p", Status: chat.JobQueued,
	}); err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func TestProcessor_Succeeds(t *testing.T) {
	gen := &cannedGenerator{reply: "the answer"}
	repo, p := setup(t, gen)
	ctx := context.Background()

	c, _ := repo.CreateChat(ctx, "u1", "")
	_, _ = repo.AppendMessage(ctx, c.ID, chat.RoleUser, "question")
	queuedJob(t, repo, "job-1", "u1", c.ID)

	if err := p.Handle(ctx, "job-1", false); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(gen.seen) != 1 || gen.seen[0].Content != "question" {
		t.Fatalf("generator saw %+v", gen.seen)
	}
	j, _ := repo.GetJobByID(ctx, "job-1")
	if j.Status != chat.JobSucceeded || j.ResultMessageID == nil {
		t.Fatalf("job %+v", j)
	}
	msgs, _ := repo.ListMessages(ctx, c.ID)
	if len(msgs) != 2 || msgs[1].ID != *j.ResultMessageID || msgs[1].Content != "the answer" {
		t.Fatalf("messages %+v", msgs)
	}

	// redelivery of a finished job is a no-op
	if err := p.Handle(ctx, "job-1", false); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if msgs, _ := repo.ListMessages(ctx, c.ID); len(msgs) != 2 {
		t.Fatalf("redelivery appended again: %d", len(msgs))
	}
}

func TestProcessor_ErrorReplyStillSucceeds(t *testing.T) {
	repo, p := setup(t, &cannedGenerator{reply: "Error: quota exceeded"})
	ctx := context.Background()

	c, _ := repo.CreateChat(ctx, "u1", "")
	_, _ = repo.AppendMessage(ctx, c.ID, chat.RoleUser, "q")
	queuedJob(t, repo, "job-e", "u1", c.ID)

	if err := p.Handle(ctx, "job-e", false); err != nil {
		t.Fatalf("handle: %v", err)
	}
	j, _ := repo.GetJobByID(ctx, "job-e")
	if j.Status != chat.JobSucceeded {
		t.Fatalf("status %s", j.Status)
	}
}

func TestProcessor_PermanentFailures(t *testing.T) {
	repo, p := setup(t, &cannedGenerator{reply: "x"})
	ctx := context.Background()

	err := p.Handle(ctx, "no-such-job", false)
	if !errors.Is(err, gorm.ErrRecordNotFound) || !IsPermanent(err) {
		t.Fatalf("unknown job: %v", err)
	}

	queuedJob(t, repo, "job-orphan", "u1", "missing-chat")
	err = p.Handle(ctx, "job-orphan", false)
	if !errors.Is(err, chat.ErrChatNotFound) || !IsPermanent(err) {
		t.Fatalf("orphan job: %v", err)
	}
	j, _ := repo.GetJobByID(ctx, "job-orphan")
	if j.Status != chat.JobFailed || j.Error == nil {
		t.Fatalf("job %+v", j)
	}
}

func TestProcessor_ForeignChatFails(t *testing.T) {
	repo, p := setup(t, &cannedGenerator{reply: "x"})
	ctx := context.Background()

	c, _ := repo.CreateChat(ctx, "owner", "")
	queuedJob(t, repo, "job-foreign", "intruder", c.ID)

	if err := p.Handle(ctx, "job-foreign", false); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if msgs, _ := repo.ListMessages(ctx, c.ID); len(msgs) != 0 {
		t.Fatalf("reply written to foreign chat")
	}
}

func TestRetryCount(t *testing.T) {
	cases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 0},
		{amqp.Table{}, 0},
		{amqp.Table{retryHeader: int32(2)}, 2},
		{amqp.Table{retryHeader: int64(1)}, 1},
		{amqp.Table{retryHeader: "3"}, 0},
	}
	for _, tc := range cases {
		if got := retryCount(tc.headers); got != tc.want {
			t.Errorf("retryCount(%v)=%d want %d", tc.headers, got, tc.want)
		}
	}
}
