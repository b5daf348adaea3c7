package ingest

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const bufferPrefix = "tracking:buffer:"

// Buffer holds not-yet-durable location samples as one Redis list per
// session. Appends for different sessions never contend; a drain takes
// an atomic snapshot of one session's list so concurrent appends land in
// the next cycle.
type Buffer struct {
	rdb *redis.Client
}

func NewBuffer(rdb *redis.Client) *Buffer {
	return &Buffer{rdb: rdb}
}

func bufferKey(sessionID string) string {
	return bufferPrefix + sessionID
}

func (b *Buffer) Append(ctx context.Context, sessionID string, payload []byte) error {
	return b.rdb.RPush(ctx, bufferKey(sessionID), payload).Err()
}

// DrainSession atomically takes and clears the session's buffered
// samples, oldest first.
func (b *Buffer) DrainSession(ctx context.Context, sessionID string) ([]string, error) {
	key := bufferKey(sessionID)

	pipe := b.rdb.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return rangeCmd.Val(), nil
}

// Sessions lists every session id with buffered samples.
func (b *Buffer) Sessions(ctx context.Context) ([]string, error) {
	var sessions []string
	iter := b.rdb.Scan(ctx, 0, bufferPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		sessions = append(sessions, iter.Val()[len(bufferPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Requeue puts a drained batch back at the front of the session's list,
// preserving its order ahead of samples that arrived meanwhile. Used when
// the durable insert fails so the batch is retried next cycle.
func (b *Buffer) Requeue(ctx context.Context, sessionID string, batch []string) error {
	if len(batch) == 0 {
		return nil
	}
	reversed := make([]interface{}, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		reversed = append(reversed, batch[i])
	}
	return b.rdb.LPush(ctx, bufferKey(sessionID), reversed...).Err()
}
