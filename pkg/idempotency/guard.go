package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrHeld = errors.New("idempotency key already held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store hands out short-lived exclusive keys backed by SETNX. It keeps two
// disbursement runs from working the same ledger at once.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(scope, name string) string {
	return fmt.Sprintf("idem:%s:%s", scope, name)
}

type Lease struct {
	store *Store
	key   string
	token string
}

func (s *Store) Acquire(ctx context.Context, key string) (*Lease, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, key, token, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, key)
	}
	return &Lease{store: s, key: key, token: token}, nil
}

// Release drops the key only if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.store.rdb, []string{l.key}, l.token).Err()
}
