package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(multiple, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func newTestConsumer(handler SendHandler) *Consumer {
	return &Consumer{queueName: "campaign_sends", handler: handler, log: zerolog.Nop()}
}

func TestConsumer_ProcessMessage(t *testing.T) {
	var got *SendRequest
	c := newTestConsumer(func(ctx context.Context, req *SendRequest) error {
		got = req
		return nil
	})

	body, _ := json.Marshal(SendRequest{RequestID: "r-1", CampaignID: 7, RequestedAt: time.Now()})
	if err := c.processMessage(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.CampaignID != 7 || got.RequestID != "r-1" {
		t.Errorf("handler got %+v", got)
	}
}

func TestConsumer_ProcessMessage_BadPayloadIsPermanent(t *testing.T) {
	called := false
	c := newTestConsumer(func(ctx context.Context, req *SendRequest) error {
		called = true
		return nil
	})

	for _, body := range [][]byte{[]byte("{not json"), []byte(`{"request_id":"x"}`)} {
		err := c.processMessage(context.Background(), body)
		if !IsPermanent(err) {
			t.Errorf("expected permanent error for %s, got %v", body, err)
		}
	}
	if called {
		t.Error("handler must not run for invalid payloads")
	}
}

func TestConsumer_ProcessMessage_HandlerErrorKeepsClass(t *testing.T) {
	transient := newTestConsumer(func(ctx context.Context, req *SendRequest) error {
		return errors.New("database unavailable")
	})
	permanent := newTestConsumer(func(ctx context.Context, req *SendRequest) error {
		return Permanent(errors.New("campaign already sent"))
	})
	body, _ := json.Marshal(SendRequest{CampaignID: 1})

	if err := transient.processMessage(context.Background(), body); err == nil || IsPermanent(err) {
		t.Errorf("expected transient error, got %v", err)
	}
	if err := permanent.processMessage(context.Background(), body); !IsPermanent(err) {
		t.Errorf("expected permanent error through wrapping, got %v", err)
	}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{"success acks", nil, false, true, false},
		{"transient requeues once", errors.New("boom"), false, false, true},
		{"transient redelivered drops", errors.New("boom"), true, false, false},
		{"permanent drops", Permanent(errors.New("conflict")), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			settle(zerolog.Nop(), ack, tt.redelivered, tt.err)
			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && !ack.nacked {
				t.Error("expected nack")
			}
			if ack.requeued != tt.wantRequeue {
				t.Errorf("requeued = %v, want %v", ack.requeued, tt.wantRequeue)
			}
		})
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
	if IsPermanent(errors.New("x")) {
		t.Error("plain errors are not permanent")
	}
}

func sendDelivery(t *testing.T, campaignID int) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(SendRequest{RequestID: "r", CampaignID: campaignID})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return amqp.Delivery{Body: body}
}

func TestConsumer_ShutdownDrainsRequestInProgress(t *testing.T) {
	started := make(chan struct{})
	var canceled, finished atomic.Bool
	c := newTestConsumer(func(ctx context.Context, req *SendRequest) error {
		close(started)
		select {
		case <-ctx.Done():
			canceled.Store(true)
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			finished.Store(true)
			return nil
		}
	})

	msgs := make(chan amqp.Delivery, 1)
	msgs <- sendDelivery(t, 1)
	sigCtx, sig := context.WithCancel(context.Background())
	c.run(sigCtx, msgs)

	<-started
	sig()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if canceled.Load() {
		t.Fatal("signal canceled the request in progress")
	}
	if !finished.Load() {
		t.Fatal("Stop returned before the request finished")
	}
}

func TestConsumer_StopCancelsOnDeadline(t *testing.T) {
	started := make(chan struct{})
	var canceled atomic.Bool
	c := newTestConsumer(func(ctx context.Context, req *SendRequest) error {
		close(started)
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})

	msgs := make(chan amqp.Delivery, 1)
	msgs <- sendDelivery(t, 1)
	c.run(context.Background(), msgs)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = c.Stop(ctx)

	if !canceled.Load() {
		t.Error("expected the request to be canceled after the deadline")
	}
}

func TestConsumer_StopBeforeStart(t *testing.T) {
	c := newTestConsumer(func(ctx context.Context, req *SendRequest) error { return nil })
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
