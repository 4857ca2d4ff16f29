package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

func TestSimulated_SuccessRate(t *testing.T) {
	ctx := context.Background()

	always := NewSimulated(1.0, 0, 0)
	for i := 0; i < 20; i++ {
		if err := always.SendEmail(ctx, "a@example.com", "A", "s", "<p>h</p>", "t"); err != nil {
			t.Fatalf("rate 1.0 should never fail, got %v", err)
		}
	}

	never := NewSimulated(0.0, 0, 0)
	for i := 0; i < 20; i++ {
		err := never.SendSMS(ctx, "+46700000000", "hej")
		var se *SendError
		if !errors.As(err, &se) {
			t.Fatalf("rate 0.0 should return a SendError, got %v", err)
		}
		if se.Kind == "" {
			t.Fatal("failure must carry a kind")
		}
	}
}

func TestSimulated_ClampsRate(t *testing.T) {
	if got := NewSimulated(3, 0, 0).SuccessRate(); got != 1.0 {
		t.Errorf("rate = %v, want 1.0", got)
	}
	if got := NewSimulated(-1, 0, 0).SuccessRate(); got != 0.0 {
		t.Errorf("rate = %v, want 0.0", got)
	}
}

func TestSimulated_InvalidAddress(t *testing.T) {
	s := NewSimulated(1.0, 0, 0)
	err := s.SendEmail(context.Background(), "not-an-address", "", "s", "", "t")
	if Classify(err) != models.ErrorKindInvalidAddress {
		t.Errorf("Classify() = %v, want invalid_address", Classify(err))
	}
}

func TestSimulated_HonorsCancellation(t *testing.T) {
	s := NewSimulated(1.0, time.Second, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.SendSMS(ctx, "+46700000000", "hej")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("send did not stop at the deadline")
	}
	if Classify(err) != models.ErrorKindTimeout {
		t.Errorf("Classify() = %v, want timeout", Classify(err))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorKind
	}{
		{"send error", &SendError{Kind: models.ErrorKindRateLimited, Err: errors.New("slow down")}, models.ErrorKindRateLimited},
		{"wrapped send error", fmt.Errorf("provider: %w", &SendError{Kind: models.ErrorKindRejected, Err: errors.New("no")}), models.ErrorKindRejected},
		{"deadline", context.DeadlineExceeded, models.ErrorKindTimeout},
		{"anything else", errors.New("connection reset"), models.ErrorKindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

type recordingEmail struct{ to, name, subject, html, text string }

func (r *recordingEmail) SendEmail(ctx context.Context, to, name, subject, html, text string) error {
	r.to, r.name, r.subject, r.html, r.text = to, name, subject, html, text
	return nil
}

type recordingSMS struct{ phone, text string }

func (r *recordingSMS) SendSMS(ctx context.Context, phone, text string) error {
	r.phone, r.text = phone, text
	return nil
}

func TestRouter_Deliver(t *testing.T) {
	email := &recordingEmail{}
	sms := &recordingSMS{}
	rt := &Router{Email: email, SMS: sms}
	ctx := context.Background()

	err := rt.Deliver(ctx, models.Recipient{Address: "a@example.com", Name: " Anna "},
		models.Message{Channel: models.ChannelEmail, Subject: "S", HTML: "<p>h</p>", Text: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if email.to != "a@example.com" || email.name != "Anna" || email.subject != "S" {
		t.Errorf("email not routed correctly: %+v", email)
	}

	if err := rt.Deliver(ctx, models.Recipient{Address: "+4670"}, models.Message{Channel: models.ChannelSMS, Text: "hej"}); err != nil {
		t.Fatal(err)
	}
	if sms.phone != "+4670" || sms.text != "hej" {
		t.Errorf("sms not routed correctly: %+v", sms)
	}

	err = (&Router{}).Deliver(ctx, models.Recipient{Address: "x"}, models.Message{Channel: models.ChannelSMS})
	if Classify(err) != models.ErrorKindUnavailable {
		t.Errorf("missing transport should be unavailable, got %v", err)
	}
}
