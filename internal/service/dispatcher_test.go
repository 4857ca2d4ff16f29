package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/logging"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/transport"
)

var testMessage = models.Message{Channel: models.ChannelEmail, Subject: "S", HTML: "<p>h</p>", Text: "t"}

func TestPartition_CoversEveryRecipient(t *testing.T) {
	for n := 0; n <= 23; n++ {
		for _, b := range []int{1, 2, 5, 7, 50} {
			batches := Partition(testRecipients(n), b)

			wantBatches := (n + b - 1) / b
			if len(batches) != wantBatches {
				t.Fatalf("N=%d B=%d: got %d batches, want %d", n, b, len(batches), wantBatches)
			}

			sum, next := 0, 1
			for i, batch := range batches {
				if len(batch) > b || len(batch) == 0 {
					t.Fatalf("N=%d B=%d: batch %d has size %d", n, b, i, len(batch))
				}
				for _, r := range batch {
					if r.Address != fmt.Sprintf("r%d@example.com", next) {
						t.Fatalf("N=%d B=%d: order broken at %s", n, b, r.Address)
					}
					next++
				}
				sum += len(batch)
			}
			if sum != n {
				t.Fatalf("N=%d B=%d: batches hold %d recipients", n, b, sum)
			}
		}
	}
}

func TestPartition_DefaultSize(t *testing.T) {
	batches := Partition(testRecipients(120), 0)
	AssertEqual(t, len(batches), 3)
	AssertEqual(t, len(batches[0]), DefaultBatchSize)
}

func TestDispatcher_EmptyRecipients(t *testing.T) {
	sender := NewMockSender()
	d := NewDispatcher(sender, DispatcherConfig{}, zerolog.Nop())

	outcome := d.Dispatch(context.Background(), nil, testMessage, DispatchOptions{BatchSize: 5})

	AssertEqual(t, outcome.Attempted, 0)
	AssertEqual(t, outcome.Succeeded, 0)
	AssertEqual(t, outcome.Failed(), 0)
	AssertEqual(t, outcome.Batches, 0)
	AssertEqual(t, sender.Count(), 0)
}

func TestDispatcher_MixedOutcomesKeepInvariant(t *testing.T) {
	sender := NewMockSender()
	sender.DeliverFunc = func(ctx context.Context, r models.Recipient, msg models.Message) error {
		switch r.Address {
		case "r2@example.com":
			return &transport.SendError{Kind: models.ErrorKindInvalidAddress, Err: errors.New("mailbox r2@example.com unknown")}
		case "r5@example.com":
			return errors.New("connection reset")
		case "r6@example.com":
			return context.DeadlineExceeded
		}
		return nil
	}
	d := NewDispatcher(sender, DispatcherConfig{}, zerolog.Nop())

	recipients := testRecipients(7)
	outcome := d.Dispatch(context.Background(), recipients, testMessage, DispatchOptions{BatchSize: 3})

	AssertEqual(t, outcome.Attempted, 7)
	AssertEqual(t, outcome.Succeeded+outcome.Failed(), outcome.Attempted)
	AssertEqual(t, outcome.Failed(), 3)
	AssertEqual(t, outcome.Batches, 3)
	AssertEqual(t, outcome.Canceled, false)

	wantKinds := []models.ErrorKind{models.ErrorKindInvalidAddress, models.ErrorKindTransport, models.ErrorKindTimeout}
	wantHashes := []string{"r2@example.com", "r5@example.com", "r6@example.com"}
	for i, f := range outcome.Failures {
		AssertEqual(t, f.Kind, wantKinds[i])
		AssertEqual(t, f.RecipientHash, logging.HashRecipient(wantHashes[i]))
		AssertNotContains(t, f.Detail, "@example.com")
	}

	for i, addr := range sender.Delivered {
		AssertEqual(t, addr, recipients[i].Address)
	}
}

func TestDispatcher_PausesOnlyBetweenBatches(t *testing.T) {
	sender := NewMockSender()
	var sendTimes []time.Time
	sender.DeliverFunc = func(ctx context.Context, r models.Recipient, msg models.Message) error {
		sendTimes = append(sendTimes, time.Now())
		return nil
	}
	d := NewDispatcher(sender, DispatcherConfig{}, zerolog.Nop())
	delay := 40 * time.Millisecond

	start := time.Now()
	outcome := d.Dispatch(context.Background(), testRecipients(5), testMessage, DispatchOptions{BatchSize: 2, BatchDelay: delay})
	elapsed := time.Since(start)

	AssertEqual(t, outcome.Batches, 3)
	if elapsed < 2*delay {
		t.Errorf("expected two pauses (>= %v), took %v", 2*delay, elapsed)
	}
	if elapsed > 2*delay+time.Second {
		t.Errorf("paused after the last batch? took %v", elapsed)
	}
	// within a batch there is no pause
	if gap := sendTimes[1].Sub(sendTimes[0]); gap >= delay {
		t.Errorf("unexpected pause inside batch: %v", gap)
	}
	if gap := sendTimes[2].Sub(sendTimes[1]); gap < delay {
		t.Errorf("missing pause between batches: %v", gap)
	}
}

func TestDispatcher_CancelStopsNewSends(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewMockSender()
	sender.DeliverFunc = func(ctx context.Context, r models.Recipient, msg models.Message) error {
		if r.Address == "r3@example.com" {
			cancel()
		}
		return nil
	}
	d := NewDispatcher(sender, DispatcherConfig{}, zerolog.Nop())

	outcome := d.Dispatch(ctx, testRecipients(10), testMessage, DispatchOptions{BatchSize: 4})

	AssertEqual(t, outcome.Canceled, true)
	AssertEqual(t, outcome.Attempted, 3)
	AssertEqual(t, outcome.Succeeded, 3)
	AssertEqual(t, outcome.Skipped, 7)
	AssertEqual(t, sender.Count(), 3)
}

func TestDispatcher_CancelDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewMockSender()
	d := NewDispatcher(sender, DispatcherConfig{}, zerolog.Nop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := d.Dispatch(ctx, testRecipients(4), testMessage, DispatchOptions{BatchSize: 2, BatchDelay: 10 * time.Second})

	if time.Since(start) > 5*time.Second {
		t.Fatal("pause did not observe cancellation")
	}
	AssertEqual(t, outcome.Canceled, true)
	AssertEqual(t, outcome.Attempted, 2)
	AssertEqual(t, outcome.Batches, 1)
	AssertEqual(t, outcome.Skipped, 2)
}

func TestDispatcher_SendTimeoutIsClassified(t *testing.T) {
	sender := NewMockSender()
	sender.DeliverFunc = func(ctx context.Context, r models.Recipient, msg models.Message) error {
		<-ctx.Done()
		return ctx.Err()
	}
	d := NewDispatcher(sender, DispatcherConfig{SendTimeout: 10 * time.Millisecond}, zerolog.Nop())

	outcome := d.Dispatch(context.Background(), testRecipients(2), testMessage, DispatchOptions{BatchSize: 5})

	AssertEqual(t, outcome.Attempted, 2)
	AssertEqual(t, outcome.Failed(), 2)
	AssertEqual(t, outcome.Failures[0].Kind, models.ErrorKindTimeout)
	AssertEqual(t, outcome.Canceled, false)
}

func TestDispatcher_LogsOnlyHashes(t *testing.T) {
	log, buf := newTestLogger()
	sender := NewMockSender()
	sender.DeliverFunc = func(ctx context.Context, r models.Recipient, msg models.Message) error {
		if r.Address == "r1@example.com" {
			return fmt.Errorf("rejected %s", r.Address)
		}
		return nil
	}
	d := NewDispatcher(sender, DispatcherConfig{}, log)

	d.Dispatch(context.Background(), testRecipients(3), testMessage, DispatchOptions{BatchSize: 2})

	out := buf.String()
	AssertNotContains(t, out, "@example.com")
	AssertContains(t, out, logging.HashRecipient("r1@example.com"))
	AssertContains(t, out, logging.HashRecipient("r3@example.com"))
}

func TestDispatcher_RedactsEchoInOtherCase(t *testing.T) {
	log, buf := newTestLogger()
	sender := NewMockSender()
	sender.DeliverFunc = func(ctx context.Context, r models.Recipient, msg models.Message) error {
		return fmt.Errorf("550 mailbox anna@example.se unavailable")
	}
	d := NewDispatcher(sender, DispatcherConfig{}, log)

	outcome := d.Dispatch(context.Background(), []models.Recipient{{Address: "Anna@Example.se"}}, testMessage, DispatchOptions{})

	AssertEqual(t, outcome.Failed(), 1)
	AssertNotContains(t, outcome.Failures[0].Detail, "anna@example.se")
	AssertContains(t, outcome.Failures[0].Detail, logging.HashRecipient("Anna@Example.se"))
	AssertNotContains(t, buf.String(), "anna@example.se")
}

func TestDispatcher_RateLimiterPacesSends(t *testing.T) {
	sender := NewMockSender()
	d := NewDispatcher(sender, DispatcherConfig{RatePerSec: 50}, zerolog.Nop())

	start := time.Now()
	outcome := d.Dispatch(context.Background(), testRecipients(4), testMessage, DispatchOptions{BatchSize: 10})

	AssertEqual(t, outcome.Succeeded, 4)
	// burst of 1, then 3 waits of 20ms
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("limiter did not pace sends: %v", elapsed)
	}
}
