package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Ledger stores committed payee IDs in a Redis list. RPUSH returns only once
// the write is applied, so Append is durable to the server's persistence
// settings.
type Ledger struct {
	rdb goredis.Cmdable
	key string
}

func NewLedger(rdb goredis.Cmdable, name string) *Ledger {
	return &Ledger{rdb: rdb, key: Key(name)}
}

func Key(name string) string {
	return "disburse:ledger:" + name
}

func (l *Ledger) Load(ctx context.Context) ([]string, error) {
	ids, err := l.rdb.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", l.key, err)
	}
	return ids, nil
}

func (l *Ledger) Append(ctx context.Context, id string) error {
	if id == "" || strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPayeeID, id)
	}
	if err := l.rdb.RPush(ctx, l.key, id).Err(); err != nil {
		return fmt.Errorf("append ledger %s: %w", l.key, err)
	}
	return nil
}
