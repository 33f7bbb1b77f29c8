// Package presence keeps the roster-wide online flag in Redis.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/talkroom/internal/domain"
	"github.com/redis/go-redis/v9"
)

// keys:
//
//	pres:user:{userId} = "1" while online; no expiry, removed on disconnect
//	lastseen:{userId}  = RFC3339 timestamp of the last transition
type Presence struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewPresence(r redis.Cmdable) *Presence {
	return &Presence{rdb: r, now: time.Now}
}

func userKey(id domain.UserID) string     { return "pres:user:" + string(id) }
func lastSeenKey(id domain.UserID) string { return "lastseen:" + string(id) }

func (p *Presence) SetOnline(ctx context.Context, userID domain.UserID, online bool) error {
	now := p.now().UTC().Format(time.RFC3339)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if online {
			// A session can outlive any TTL, so the flag lives until Del.
			pipe.Set(ctx, userKey(userID), "1", 0)
		} else {
			pipe.Del(ctx, userKey(userID))
		}
		pipe.Set(ctx, lastSeenKey(userID), now, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence %s: %w", userID, err)
	}
	return nil
}
