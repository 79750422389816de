package campaigns

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liamcoop/crm/audience"
)

var (
	ErrNotFound      = errors.New("campaign not found")
	ErrAlreadyExists = errors.New("campaign already exists")
)

// Store manages campaign persistence and retrieval
type Store interface {
	// Add a new campaign
	Add(c *Campaign) error

	// Get a campaign by ID
	Get(id string) (*Campaign, error)

	// List all campaigns, newest first
	List() ([]*Campaign, error)

	// ListActive returns campaigns still delivering, oldest first
	ListActive() ([]*Campaign, error)

	// Update an existing campaign
	Update(c *Campaign) error

	// Delete a campaign
	Delete(id string) error
}

// InMemoryStore implements Store using an in-memory map
type InMemoryStore struct {
	campaigns map[string]*Campaign
	order     []string
	mu        sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{campaigns: make(map[string]*Campaign)}
}

// Add sets CreatedAt and UpdatedAt and rejects duplicate IDs
func (s *InMemoryStore) Add(c *Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[c.ID]; exists {
		return fmt.Errorf("campaign %s: %w", c.ID, ErrAlreadyExists)
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.campaigns[c.ID] = copyCampaign(c)
	s.order = append(s.order, c.ID)
	return nil
}

func (s *InMemoryStore) Get(id string) (*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.campaigns[id]
	if !exists {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	return copyCampaign(c), nil
}

func (s *InMemoryStore) List() ([]*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Campaign, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		list = append(list, copyCampaign(s.campaigns[s.order[i]]))
	}
	return list, nil
}

func (s *InMemoryStore) ListActive() ([]*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Campaign
	for _, id := range s.order {
		if c := s.campaigns[id]; c.Status == StatusActive {
			active = append(active, copyCampaign(c))
		}
	}
	return active, nil
}

// Update preserves the original CreatedAt
func (s *InMemoryStore) Update(c *Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.campaigns[c.ID]
	if !exists {
		return fmt.Errorf("campaign %s: %w", c.ID, ErrNotFound)
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	s.campaigns[c.ID] = copyCampaign(c)
	return nil
}

func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[id]; !exists {
		return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	delete(s.campaigns, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func copyCampaign(c *Campaign) *Campaign {
	out := *c
	out.Rules = append(audience.Chain(nil), c.Rules...)
	return &out
}
