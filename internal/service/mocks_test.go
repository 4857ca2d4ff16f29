package service

import (
	"context"
	"sync"
	"time"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/queue"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
)

// MockSender mocks transport.Sender and records every delivery in order
type MockSender struct {
	DeliverFunc func(ctx context.Context, r models.Recipient, msg models.Message) error

	mu        sync.Mutex
	Delivered []string
	Messages  []models.Message
	Calls     map[string]int
}

func NewMockSender() *MockSender {
	return &MockSender{Calls: make(map[string]int)}
}

func (m *MockSender) Deliver(ctx context.Context, r models.Recipient, msg models.Message) error {
	m.mu.Lock()
	m.Calls["Deliver"]++
	m.Delivered = append(m.Delivered, r.Address)
	m.Messages = append(m.Messages, msg)
	fn := m.DeliverFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, r, msg)
	}
	return nil
}

func (m *MockSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls["Deliver"]
}

// MockPublisher mocks Publisher
type MockPublisher struct {
	PublishSendRequestFunc   func(ctx context.Context, req *queue.SendRequest) error
	PublishDispatchEventFunc func(ctx context.Context, event *models.DispatchEvent) error

	mu       sync.Mutex
	Requests []*queue.SendRequest
	Events   []*models.DispatchEvent
	Calls    map[string]int
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Calls: make(map[string]int)}
}

func (m *MockPublisher) PublishSendRequest(ctx context.Context, req *queue.SendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["PublishSendRequest"]++
	if m.PublishSendRequestFunc != nil {
		return m.PublishSendRequestFunc(ctx, req)
	}
	m.Requests = append(m.Requests, req)
	return nil
}

func (m *MockPublisher) PublishDispatchEvent(ctx context.Context, event *models.DispatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["PublishDispatchEvent"]++
	if m.PublishDispatchEventFunc != nil {
		return m.PublishDispatchEventFunc(ctx, event)
	}
	m.Events = append(m.Events, event)
	return nil
}

// MockResolver mocks Resolver
type MockResolver struct {
	ResolveFunc func(ctx context.Context, c *models.Campaign) ([]models.Recipient, error)
	Calls       map[string]int
}

func NewMockResolver() *MockResolver {
	return &MockResolver{Calls: make(map[string]int)}
}

func (m *MockResolver) Resolve(ctx context.Context, c *models.Campaign) ([]models.Recipient, error) {
	m.Calls["Resolve"]++
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, c)
	}
	return testRecipients(3), nil
}

// MockCampaignRepository wraps a MemoryStore and lets a test override single methods
type MockCampaignRepository struct {
	*repository.MemoryStore

	TryStartSendingFunc  func(ctx context.Context, id int) (bool, error)
	CompleteDispatchFunc func(ctx context.Context, id int, sentAt time.Time, stats *models.CampaignStats) error

	Calls map[string]int
}

func NewMockCampaignRepository(store *repository.MemoryStore) *MockCampaignRepository {
	return &MockCampaignRepository{MemoryStore: store, Calls: make(map[string]int)}
}

func (m *MockCampaignRepository) TryStartSending(ctx context.Context, id int) (bool, error) {
	m.Calls["TryStartSending"]++
	if m.TryStartSendingFunc != nil {
		return m.TryStartSendingFunc(ctx, id)
	}
	return m.MemoryStore.TryStartSending(ctx, id)
}

func (m *MockCampaignRepository) CompleteDispatch(ctx context.Context, id int, sentAt time.Time, stats *models.CampaignStats) error {
	m.Calls["CompleteDispatch"]++
	if m.CompleteDispatchFunc != nil {
		return m.CompleteDispatchFunc(ctx, id, sentAt, stats)
	}
	return m.MemoryStore.CompleteDispatch(ctx, id, sentAt, stats)
}

func (m *MockCampaignRepository) Revert(ctx context.Context, id int, to models.CampaignStatus, retryAt *time.Time) error {
	m.Calls["Revert"]++
	return m.MemoryStore.Revert(ctx, id, to, retryAt)
}
