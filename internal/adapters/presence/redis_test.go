package presence

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// recorder captures pipelined commands instead of sending them.
type recorder struct {
	mu   sync.Mutex
	cmds [][]any
}

func (r *recorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (r *recorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (r *recorder) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, c := range cmds {
			r.cmds = append(r.cmds, c.Args())
		}
		return nil
	}
}

func (r *recorder) find(name, key string) ([]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, args := range r.cmds {
		if len(args) > 1 && strings.EqualFold(args[0].(string), name) && args[1] == key {
			return args, true
		}
	}
	return nil, false
}

func newRecorded(t *testing.T) (*Presence, *recorder) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = rdb.Close() })
	rec := &recorder{}
	rdb.AddHook(rec)
	p := NewPresence(rdb)
	p.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p, rec
}

func TestKeys(t *testing.T) {
	if got := userKey("42"); got != "pres:user:42" {
		t.Fatalf("userKey = %q", got)
	}
	if got := lastSeenKey("42"); got != "lastseen:42" {
		t.Fatalf("lastSeenKey = %q", got)
	}
}

func TestOnlineFlagHasNoExpiry(t *testing.T) {
	p, rec := newRecorded(t)
	if err := p.SetOnline(context.Background(), "42", true); err != nil {
		t.Fatal(err)
	}
	args, ok := rec.find("set", "pres:user:42")
	if !ok {
		t.Fatalf("online flag not written: %v", rec.cmds)
	}
	for _, a := range args[2:] {
		if s, ok := a.(string); ok && (strings.EqualFold(s, "ex") || strings.EqualFold(s, "px")) {
			t.Fatalf("online flag written with expiry: %v", args)
		}
	}
	seen, ok := rec.find("set", "lastseen:42")
	if !ok || seen[2] != "2025-01-02T03:04:05Z" {
		t.Fatalf("last seen = %v", seen)
	}
}

func TestOfflineDeletesFlag(t *testing.T) {
	p, rec := newRecorded(t)
	if err := p.SetOnline(context.Background(), "42", false); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.find("del", "pres:user:42"); !ok {
		t.Fatalf("flag not deleted: %v", rec.cmds)
	}
	if _, ok := rec.find("set", "lastseen:42"); !ok {
		t.Fatalf("last seen not written: %v", rec.cmds)
	}
}

func TestSetOnlineWrapsTransportError(t *testing.T) {
	// Nothing listens on this port; the client fails fast.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	p := NewPresence(rdb)
	err := p.SetOnline(context.Background(), "42", true)
	if err == nil {
		t.Fatal("expected error without a server")
	}
}
