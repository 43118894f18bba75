package alert

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestAlerter(t *testing.T) (*FailureAlerter, *miniredis.Miniredis) {
	t.Helper()
	redis := miniredis.RunT(t)
	alerter := NewFailureAlerter(redis.Addr(), "", "test:alerts")
	if alerter == nil {
		t.Fatalf("expected alerter")
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return fixed }
	t.Cleanup(func() { _ = alerter.Close() })
	return alerter, redis
}

func TestFailureAlerterTriggersOnceAtThreshold(t *testing.T) {
	alerter, _ := newTestAlerter(t)
	triggered := 0
	for i := 0; i < 5; i++ {
		result, err := alerter.Observe(context.Background(), SinkStorage)
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered {
			triggered++
			if result.Count != 3 {
				t.Fatalf("triggered at count %d, want 3", result.Count)
			}
		}
	}
	if triggered != 1 {
		t.Fatalf("triggered %d times, want once per window", triggered)
	}
}

func TestFailureAlerterCountsSinksSeparately(t *testing.T) {
	alerter, _ := newTestAlerter(t)
	for i := 0; i < 4; i++ {
		if _, err := alerter.Observe(context.Background(), SinkEmail); err != nil {
			t.Fatalf("observe email: %v", err)
		}
	}
	result, err := alerter.Observe(context.Background(), SinkWebhook)
	if err != nil {
		t.Fatalf("observe webhook: %v", err)
	}
	if result.Count != 1 || result.Triggered {
		t.Fatalf("webhook result = %+v, want first failure untriggered", result)
	}
}

func TestFailureAlerterIgnoresUnknownSink(t *testing.T) {
	alerter, _ := newTestAlerter(t)
	result, err := alerter.Observe(context.Background(), "sms")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 0 {
		t.Fatalf("unexpected result for unknown sink: %+v", result)
	}
}

func TestFailureAlerterReportsRedisErrors(t *testing.T) {
	alerter, redis := newTestAlerter(t)
	redis.Close()
	if _, err := alerter.Observe(context.Background(), SinkEmail); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

func TestNilFailureAlerterIsNoop(t *testing.T) {
	alerter := NewFailureAlerter("", "", "")
	if alerter != nil {
		t.Fatalf("expected nil alerter without redis addr")
	}
	result, err := alerter.Observe(context.Background(), SinkEmail)
	if err != nil || result.Triggered {
		t.Fatalf("nil alerter should be a no-op, got %+v, %v", result, err)
	}
	if err := alerter.Close(); err != nil {
		t.Fatalf("close nil alerter: %v", err)
	}
}
