package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var failureCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// ObserveTimeout bounds the Redis round trip of one Observe call.
const ObserveTimeout = 2 * time.Second

// Sink names counted by the alerter.
const (
	SinkEmail   = "email"
	SinkWebhook = "webhook"
	SinkStorage = "storage"
)

// Result contains alert evaluation output.
type Result struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// FailureAlerter counts sink failures per fixed window and reports when a
// sink crosses its threshold. A nil *FailureAlerter is a valid no-op.
type FailureAlerter struct {
	redisClient *redis.Client
	prefix      string
	now         func() time.Time
}

// NewFailureAlerter creates an alerter backed by Redis counters.
// It returns nil when addr is empty.
func NewFailureAlerter(addr, password, prefix string) *FailureAlerter {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "contact:alerts"
	}
	return &FailureAlerter{
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		now:    time.Now,
	}
}

// Observe records one failure of sink.
func (a *FailureAlerter) Observe(ctx context.Context, sink string) (Result, error) {
	result := Result{}
	if a == nil || a.redisClient == nil {
		return result, nil
	}
	threshold, window, ok := failureRule(sink)
	if !ok {
		return result, nil
	}
	windowMs := window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%d", a.prefix, sink, slot)
	ctx, cancel := context.WithTimeout(ctx, ObserveTimeout)
	defer cancel()
	count, err := failureCounterScript.Run(ctx, a.redisClient, []string{key}, windowMs).Int64()
	if err != nil {
		return result, err
	}
	result.Count = count
	result.Threshold = threshold
	result.Window = window
	// Fire once per window, on the crossing.
	result.Triggered = count == threshold
	return result, nil
}

// Close releases the Redis client.
func (a *FailureAlerter) Close() error {
	if a == nil || a.redisClient == nil {
		return nil
	}
	return a.redisClient.Close()
}

func failureRule(sink string) (threshold int64, window time.Duration, ok bool) {
	switch strings.TrimSpace(sink) {
	case SinkEmail, SinkWebhook:
		return 5, 10 * time.Minute, true
	case SinkStorage:
		return 3, 10 * time.Minute, true
	default:
		return 0, 0, false
	}
}
