package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/gemini-chat/internal/workspace"
)

func unreachableStore() *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	return New(rdb, 0)
}

func TestNew_DefaultLockTTL(t *testing.T) {
	s := unreachableStore()
	defer s.rdb.Close()
	if s.lockTTL != 5*time.Minute {
		t.Fatalf("lockTTL=%s", s.lockTTL)
	}
	if s.stateTTL != defaultStateTTL {
		t.Fatalf("stateTTL=%s", s.stateTTL)
	}
}

func TestStore_ConnectionErrorsAreNotBusy(t *testing.T) {
	s := unreachableStore()
	defer s.rdb.Close()
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "u1"); err == nil || ok {
		t.Fatalf("Load: expected connection error, ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, workspace.State{UserID: "u1"}); err == nil {
		t.Fatalf("Save: expected connection error")
	}
	unlock, err := s.Lock(ctx, "u1")
	if err == nil {
		unlock()
		t.Fatalf("Lock: expected connection error")
	}
	if errors.Is(err, workspace.ErrBusy) {
		t.Fatalf("connection failure reported as busy")
	}
}
