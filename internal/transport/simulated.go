package transport

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

// Simulated is a provider-free transport that succeeds with a configured
// probability after a random latency. It serves both channels.
type Simulated struct {
	successRate float64 // 0.0 to 1.0
	minLatency  time.Duration
	maxLatency  time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

var simulatedFailures = []struct {
	kind   models.ErrorKind
	reason string
}{
	{models.ErrorKindTimeout, "network timeout"},
	{models.ErrorKindInvalidAddress, "invalid recipient address"},
	{models.ErrorKindRateLimited, "rate limit exceeded"},
	{models.ErrorKindUnavailable, "service temporarily unavailable"},
	{models.ErrorKindRejected, "insufficient balance"},
}

// NewSimulated creates a simulated transport.
// successRate is clamped to [0, 1]; latency is drawn from [minLatency, maxLatency].
func NewSimulated(successRate float64, minLatency, maxLatency time.Duration) *Simulated {
	if successRate < 0.0 {
		successRate = 0.0
	}
	if successRate > 1.0 {
		successRate = 1.0
	}
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &Simulated{
		successRate: successRate,
		minLatency:  minLatency,
		maxLatency:  maxLatency,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SendEmail simulates sending an email
func (s *Simulated) SendEmail(ctx context.Context, to, name, subject, html, text string) error {
	if !strings.Contains(to, "@") {
		return &SendError{Kind: models.ErrorKindInvalidAddress, Err: errors.New("malformed email address")}
	}
	return s.send(ctx)
}

// SendSMS simulates sending an SMS
func (s *Simulated) SendSMS(ctx context.Context, phone, text string) error {
	if strings.TrimSpace(phone) == "" {
		return &SendError{Kind: models.ErrorKindInvalidAddress, Err: errors.New("empty phone number")}
	}
	return s.send(ctx)
}

func (s *Simulated) send(ctx context.Context) error {
	latency, success, failure := s.roll()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	if success {
		return nil
	}
	f := simulatedFailures[failure]
	return &SendError{Kind: f.kind, Err: errors.New(f.reason)}
}

// roll draws latency and outcome under the lock; *rand.Rand is not goroutine safe
func (s *Simulated) roll() (time.Duration, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latency := s.minLatency
	if spread := s.maxLatency - s.minLatency; spread > 0 {
		latency += time.Duration(s.rand.Int63n(int64(spread)))
	}
	success := s.rand.Float64() < s.successRate
	return latency, success, s.rand.Intn(len(simulatedFailures))
}

// SuccessRate returns the configured success rate
func (s *Simulated) SuccessRate() float64 {
	return s.successRate
}
