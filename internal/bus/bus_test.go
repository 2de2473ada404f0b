package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		received := make(chan *domain.Message, 1)

		_, err := bus.Subscribe(ctx, tenantID, domain.TopicReportReady, func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, tenantID, domain.TopicReportReady, []byte(`{"risk_score":75}`)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		select {
		case msg := <-received:
			if string(msg.Payload) != `{"risk_score":75}` {
				t.Errorf("unexpected payload %s", msg.Payload)
			}
			if msg.TenantID != tenantID || msg.Topic != domain.TopicReportReady {
				t.Errorf("unexpected envelope: %+v", msg)
			}
			if msg.ID == "" || msg.Timestamp == 0 {
				t.Error("expected message id and timestamp")
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		var received1, received2 atomic.Int32

		bus.Subscribe(ctx, "tenant-a", domain.TopicReportAlert, func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, "tenant-b", domain.TopicReportAlert, func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})

		bus.Publish(ctx, "tenant-a", domain.TopicReportAlert, []byte("alert"))
		waitFor(t, func() bool { return received1.Load() == 1 })

		time.Sleep(20 * time.Millisecond)
		if received2.Load() != 0 {
			t.Errorf("tenant-b should receive 0 messages, got %d", received2.Load())
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := bus.Publish(ctx, "", "topic", []byte("data")); err == nil {
			t.Error("expected error for empty tenantID")
		}
		_, err := bus.Subscribe(ctx, "", "topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("UnsubscribeRemovesSubscriber", func(t *testing.T) {
		var count atomic.Int32

		sub, _ := bus.Subscribe(ctx, tenantID, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg1"))
		waitFor(t, func() bool { return count.Load() == 1 })

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		bus.mu.RLock()
		remaining := len(bus.subscriptions[bus.makeKey(tenantID, "unsub.topic")])
		bus.mu.RUnlock()
		if remaining != 0 {
			t.Errorf("expected subscription to be removed, %d left", remaining)
		}

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg2"))
		time.Sleep(20 * time.Millisecond)
		if count.Load() != 1 {
			t.Errorf("expected 1 message after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("HandlerErrorDoesNotStopDelivery", func(t *testing.T) {
		var count atomic.Int32
		bus.Subscribe(ctx, tenantID, "failing.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return errors.New("boom")
		})

		bus.Publish(ctx, tenantID, "failing.topic", []byte("1"))
		bus.Publish(ctx, tenantID, "failing.topic", []byte("2"))
		waitFor(t, func() bool { return count.Load() == 2 })
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, tenantID, domain.TopicAnalysisFailed, func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if sub.Topic() != domain.TopicAnalysisFailed {
			t.Errorf("expected topic %s, got %s", domain.TopicAnalysisFailed, sub.Topic())
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}

func TestChannelBusBacklogFull(t *testing.T) {
	bus := NewChannelBus(1)
	defer bus.Close()

	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	bus.Subscribe(ctx, "tenant-001", domain.TopicDocumentSubmitted, func(ctx context.Context, msg *domain.Message) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	// First message occupies the handler, second fills the buffer.
	if err := bus.Publish(ctx, "tenant-001", domain.TopicDocumentSubmitted, []byte("1")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	<-started
	if err := bus.Publish(ctx, "tenant-001", domain.TopicDocumentSubmitted, []byte("2")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	err := bus.Publish(ctx, "tenant-001", domain.TopicDocumentSubmitted, []byte("3"))
	if !errors.Is(err, ErrBacklogFull) {
		t.Errorf("expected ErrBacklogFull, got %v", err)
	}

	close(release)
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)
	ctx := context.Background()

	bus.Subscribe(ctx, "tenant-001", "topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	if err := bus.Publish(ctx, "tenant-001", "topic", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := bus.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from ping, got %v", err)
	}
}

func TestMakeSubject(t *testing.T) {
	subject, err := makeSubject("tenant-001", domain.TopicReportAlert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "harpia.tenant-001.report.alert" {
		t.Errorf("unexpected subject %s", subject)
	}

	for _, bad := range []string{"", "a.b", "a*", "a>", "a b"} {
		if _, err := makeSubject(bad, domain.TopicReportAlert); err == nil {
			t.Errorf("expected tenant %q to be rejected", bad)
		}
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
