package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/gemini-chat/internal/workspace"
)

const (
	stateKeyPrefix = "workspace:state:"
	lockKeyPrefix  = "workspace:lock:"

	defaultStateTTL = 7 * 24 * time.Hour
)

// unlock only if the lock still carries our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store keeps workspace state as JSON in Redis and implements workspace.Store.
type Store struct {
	rdb      *redis.Client
	lockTTL  time.Duration
	stateTTL time.Duration
}

// New returns a store whose locks expire after lockTTL, so a crashed
// submission cannot wedge a workspace forever.
func New(rdb *redis.Client, lockTTL time.Duration) *Store {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Store{rdb: rdb, lockTTL: lockTTL, stateTTL: defaultStateTTL}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Load(ctx context.Context, userID string) (workspace.State, bool, error) {
	raw, err := s.rdb.Get(ctx, stateKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return workspace.State{}, false, nil
		}
		return workspace.State{}, false, err
	}
	var st workspace.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return workspace.State{}, false, fmt.Errorf("decode workspace %s: %w", userID, err)
	}
	return st, true, nil
}

func (s *Store) Save(ctx context.Context, st workspace.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, stateKeyPrefix+st.UserID, raw, s.stateTTL).Err()
}

func (s *Store) Lock(ctx context.Context, userID string) (func(), error) {
	key := lockKeyPrefix + userID
	token := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, workspace.ErrBusy
	}

	return func() {
		// the caller's ctx may already be done
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(cctx, s.rdb, []string{key}, token).Err()
	}, nil
}
