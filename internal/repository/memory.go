package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

// Subscriber is a subscriber row of the in-memory store
type Subscriber struct {
	ID          int
	Email       string
	Name        string
	PhoneNumber string
	Confirmed   bool
}

type subscription struct {
	subscriberID int
	newsletterID int
	subscribed   bool
}

// MemoryStore keeps every table in process memory. It backs the "memory"
// driver and the service, scheduler and handler tests.
type MemoryStore struct {
	mu            sync.Mutex
	campaigns     map[int]*models.Campaign
	stats         []*models.CampaignStats
	subscribers   map[int]*Subscriber
	subscriptions []subscription
	nextCampaign  int
	nextStats     int
	nextSub       int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:   make(map[int]*models.Campaign),
		subscribers: make(map[int]*Subscriber),
	}
}

// Store exposes the memory store through the Store bundle
func (m *MemoryStore) Store() *Store {
	return &Store{
		Driver:     DriverMemory,
		Campaigns:  m,
		Recipients: m,
		Stats:      m,
	}
}

// AddSubscriber inserts a subscriber and returns its ID
func (m *MemoryStore) AddSubscriber(s Subscriber) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	s.ID = m.nextSub
	m.subscribers[s.ID] = &s
	return s.ID
}

// Subscribe sets a subscriber's subscription flag for a newsletter
func (m *MemoryStore) Subscribe(subscriberID, newsletterID int, subscribed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subscriptions {
		if m.subscriptions[i].subscriberID == subscriberID && m.subscriptions[i].newsletterID == newsletterID {
			m.subscriptions[i].subscribed = subscribed
			return
		}
	}
	m.subscriptions = append(m.subscriptions, subscription{subscriberID, newsletterID, subscribed})
}

// Create stores a campaign copy and assigns its ID
func (m *MemoryStore) Create(ctx context.Context, campaign *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.nextCampaign++
	campaign.ID = m.nextCampaign
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	c := *campaign
	m.campaigns[c.ID] = &c
	return nil
}

// GetByID returns a copy of the campaign
func (m *MemoryStore) GetByID(ctx context.Context, id int) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// List filters and pages campaigns, newest first
func (m *MemoryStore) List(ctx context.Context, filters CampaignFilters) ([]*models.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Campaign
	for _, c := range m.campaigns {
		if filters.Channel != nil && c.Channel != *filters.Channel {
			continue
		}
		if filters.Status != nil && c.Status != *filters.Status {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := filters.Offset()
	if start > total {
		start = total
	}
	end := start + filters.Limit()
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ListDueScheduled returns due scheduled campaigns, oldest schedule first
func (m *MemoryStore) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	due := []*models.Campaign{}
	for _, c := range m.campaigns {
		if c.IsDue(now) {
			cp := *c
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledFor.Equal(*due[j].ScheduledFor) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
	})
	return due, nil
}

// Schedule sets the schedule of a draft or scheduled campaign
func (m *MemoryStore) Schedule(ctx context.Context, id int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || !c.CanSend() {
		return false, nil
	}
	t := at.UTC()
	c.Status = models.CampaignStatusScheduled
	c.ScheduledFor = &t
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

// TryStartSending claims a draft or scheduled campaign
func (m *MemoryStore) TryStartSending(ctx context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || !c.CanSend() {
		return false, nil
	}
	c.Status = models.CampaignStatusSending
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

// CompleteDispatch marks the campaign sent and appends the stats row
func (m *MemoryStore) CompleteDispatch(ctx context.Context, id int, sentAt time.Time, stats *models.CampaignStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != models.CampaignStatusSending {
		return fmt.Errorf("campaign %d is not sending", id)
	}
	t := sentAt.UTC()
	c.Status = models.CampaignStatusSent
	c.SentAt = &t
	c.UpdatedAt = time.Now().UTC()

	m.nextStats++
	stats.ID = m.nextStats
	stats.CampaignID = id
	stats.CreatedAt = t
	row := *stats
	m.stats = append(m.stats, &row)
	return nil
}

// Revert moves a sending campaign back to the given status
func (m *MemoryStore) Revert(ctx context.Context, id int, to models.CampaignStatus, retryAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != models.CampaignStatusSending {
		return fmt.Errorf("campaign %d is not sending", id)
	}
	c.Status = to
	if c.ScheduledFor == nil && retryAt != nil {
		t := retryAt.UTC()
		c.ScheduledFor = &t
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ListEligible mirrors the SQL audience query
func (m *MemoryStore) ListEligible(ctx context.Context, newsletterID int, channel models.Channel) ([]models.Recipient, error) {
	if _, err := addressColumn(channel); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var subs []*Subscriber
	for _, sub := range m.subscriptions {
		if sub.newsletterID != newsletterID || !sub.subscribed {
			continue
		}
		s, ok := m.subscribers[sub.subscriberID]
		if !ok || !s.Confirmed {
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })

	recipients := []models.Recipient{}
	for _, s := range subs {
		address := s.Email
		if channel == models.ChannelSMS {
			address = s.PhoneNumber
		}
		if strings.TrimSpace(address) == "" {
			continue
		}
		recipients = append(recipients, models.Recipient{Address: address, Name: s.Name})
	}
	return recipients, nil
}

// Latest returns the newest stats row of a campaign
func (m *MemoryStore) Latest(ctx context.Context, campaignID int) (*models.CampaignStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.stats) - 1; i >= 0; i-- {
		if m.stats[i].CampaignID == campaignID {
			cp := *m.stats[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListByCampaign returns every stats row of a campaign, oldest first
func (m *MemoryStore) ListByCampaign(ctx context.Context, campaignID int) ([]*models.CampaignStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := []*models.CampaignStats{}
	for _, s := range m.stats {
		if s.CampaignID == campaignID {
			cp := *s
			rows = append(rows, &cp)
		}
	}
	return rows, nil
}
