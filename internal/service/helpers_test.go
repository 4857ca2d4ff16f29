package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/clock"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/queue"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
)

// AssertNoError checks that no error occurred
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

// AssertContains checks if string contains substring
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("Expected %q to contain %q", haystack, needle)
	}
}

// AssertNotContains checks that string does not contain substring
func AssertNotContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Errorf("Expected %q not to contain %q", haystack, needle)
	}
}

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// syncBuffer lets the dispatcher log from the test goroutine and a sender goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (zerolog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return zerolog.New(buf).Level(zerolog.DebugLevel), buf
}

func testRecipients(n int) []models.Recipient {
	out := make([]models.Recipient, n)
	for i := range out {
		out[i] = models.Recipient{Address: fmt.Sprintf("r%d@example.com", i+1), Name: fmt.Sprintf("R%d", i+1)}
	}
	return out
}

// testEnv wires a CampaignService around a MemoryStore and a MockSender
type testEnv struct {
	store     *repository.MemoryStore
	sender    *MockSender
	publisher *MockPublisher
	svc       *CampaignService
	logs      *syncBuffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, buf := newTestLogger()
	store := repository.NewMemoryStore()
	sender := NewMockSender()
	publisher := NewMockPublisher()
	dispatcher := NewDispatcher(sender, DispatcherConfig{}, log)
	svc := NewCampaignService(
		store, store,
		NewRecipientResolver(store),
		dispatcher,
		publisher,
		clock.Fixed(testNow),
		PacingConfig{
			Campaign: DispatchOptions{BatchSize: 2},
			AdHoc:    DispatchOptions{BatchSize: 5},
		},
		log,
	)
	return &testEnv{store: store, sender: sender, publisher: publisher, svc: svc, logs: buf}
}

// addAudience subscribes n confirmed subscribers with email and phone to newsletter 1
func (e *testEnv) addAudience(n int) []string {
	emails := make([]string, n)
	for i := 0; i < n; i++ {
		emails[i] = fmt.Sprintf("sub%d@example.com", i+1)
		id := e.store.AddSubscriber(repository.Subscriber{
			Email:       emails[i],
			Name:        fmt.Sprintf("Sub %d", i+1),
			PhoneNumber: fmt.Sprintf("+46700000%03d", i+1),
			Confirmed:   true,
		})
		e.store.Subscribe(id, 1, true)
	}
	return emails
}

func (e *testEnv) createCampaign(t *testing.T, status models.CampaignStatus, scheduledFor *time.Time) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		NewsletterID: 1,
		Channel:      models.ChannelEmail,
		Subject:      "Nyheter",
		ContentHTML:  `<p><a href="https://example.com/a">Läs mer</a></p>`,
		ContentText:  "Läs mer: https://example.com/a",
		Status:       status,
		ScheduledFor: scheduledFor,
	}
	AssertNoError(t, e.store.Create(context.Background(), c))
	return c
}

var _ Publisher = (*queue.Publisher)(nil)
