package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type scriptedProvider struct {
	errs    []error
	reply   string
	calls   int
	history [][]Turn
	final   []string
}

func (p *scriptedProvider) Chat(ctx context.Context, history []Turn, message string) (string, error) {
	_ = ctx
	p.history = append(p.history, append([]Turn(nil), history...))
	p.final = append(p.final, message)
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	return p.reply, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func TestGenerate_MapsHistory(t *testing.T) {
	prov := &scriptedProvider{reply: "sure"}
	c := NewClient(prov)

	reply := c.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "ok"},
	})
	if reply != "sure" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if prov.calls != 1 {
		t.Fatalf("expected 1 call, got %d", prov.calls)
	}

	want := []Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleModel, Text: "hello"}}
	got := prov.history[0]
	if len(got) != len(want) {
		t.Fatalf("unexpected history len %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("history[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if prov.final[0] != "ok" {
		t.Fatalf("unexpected final message: %q", prov.final[0])
	}
}

func TestGenerate_EmptyHistory(t *testing.T) {
	prov := &scriptedProvider{reply: "welcome"}
	c := NewClient(prov)

	if reply := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "first"}}); reply != "welcome" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(prov.history[0]) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(prov.history[0]))
	}
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	prov := &scriptedProvider{errs: []error{errors.New("503")}, reply: "recovered"}
	rec := &sleepRecorder{}
	c := NewClient(prov, WithSleep(rec.sleep))

	reply := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if reply != "recovered" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if prov.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", prov.calls)
	}
	if len(rec.waits) != 1 || rec.waits[0] != 2*time.Second {
		t.Fatalf("unexpected waits: %v", rec.waits)
	}
}

func TestGenerate_ExhaustedReturnsErrorReply(t *testing.T) {
	boom := errors.New("quota exceeded")
	prov := &scriptedProvider{errs: []error{boom, boom, boom}}
	rec := &sleepRecorder{}
	c := NewClient(prov, WithSleep(rec.sleep))

	reply := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if !IsErrorReply(reply) {
		t.Fatalf("expected error reply, got %q", reply)
	}
	if reply != "Error: quota exceeded" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if prov.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", prov.calls)
	}

	var total time.Duration
	for _, w := range rec.waits {
		total += w
	}
	if len(rec.waits) != 2 || rec.waits[0] != 2*time.Second || rec.waits[1] != 4*time.Second {
		t.Fatalf("unexpected waits: %v", rec.waits)
	}
	if total != 6*time.Second {
		t.Fatalf("expected 6s total backoff, got %s", total)
	}
}

func TestGenerate_FallbackMessage(t *testing.T) {
	prov := &scriptedProvider{errs: []error{errors.New(" ")}}
	c := NewClient(prov, WithRetry(1, 0))

	reply := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if !strings.HasPrefix(reply, "Error: I encountered an error") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestGenerate_CancelledContextStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("unavailable")
	prov := &scriptedProvider{errs: []error{boom, boom, boom}}
	c := NewClient(prov, WithRetry(3, time.Hour))

	start := time.Now()
	reply := c.Generate(ctx, []Message{{Role: RoleUser, Content: "x"}})
	if time.Since(start) > time.Second {
		t.Fatalf("cancelled context should not wait for backoff")
	}
	if prov.calls != 1 {
		t.Fatalf("expected 1 call, got %d", prov.calls)
	}
	if reply != "Error: "+context.Canceled.Error() {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestGenerate_NoMessages(t *testing.T) {
	prov := &scriptedProvider{reply: "never"}
	c := NewClient(prov)
	if reply := c.Generate(context.Background(), nil); !IsErrorReply(reply) {
		t.Fatalf("expected error reply, got %q", reply)
	}
	if prov.calls != 0 {
		t.Fatalf("provider should not be called")
	}
}
