package customers

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid")
)

// Store persists customers
type Store interface {
	// Add a new customer
	Add(c *Customer) error

	// Get a customer by ID
	Get(id string) (*Customer, error)

	// List customers newest first, optionally filtered by a case-insensitive
	// search over name, email and city
	List(query string) ([]*Customer, error)

	// Update an existing customer
	Update(c *Customer) error

	// Delete a customer
	Delete(id string) error
}

// OrderStore persists orders
type OrderStore interface {
	Add(o *Order) error
	Get(id string) (*Order, error)
	// List orders newest first, optionally filtered by a case-insensitive
	// search over order ID, customer name and items
	List(query string) ([]*Order, error)
	// Delete an order
	Delete(id string) error
}

// InMemoryStore is a Store backed by a map. Values are copied in and out.
type InMemoryStore struct {
	customers map[string]*Customer
	order     []string
	mu        sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{customers: make(map[string]*Customer)}
}

func (s *InMemoryStore) Add(c *Customer) error {
	if c.ID == "" {
		return fmt.Errorf("%w: customer ID is required", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID]; exists {
		return fmt.Errorf("customer %s: %w", c.ID, ErrAlreadyExists)
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	stored := *c
	s.customers[c.ID] = &stored
	s.order = append(s.order, c.ID)
	return nil
}

func (s *InMemoryStore) Get(id string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.customers[id]
	if !exists {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *InMemoryStore) List(query string) ([]*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Customer, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		c := s.customers[s.order[i]]
		if c.matches(query) {
			out := *c
			list = append(list, &out)
		}
	}
	return list, nil
}

// Update replaces a customer, preserving its CreatedAt
func (s *InMemoryStore) Update(c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customers[c.ID]
	if !exists {
		return fmt.Errorf("customer %s: %w", c.ID, ErrNotFound)
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	stored := *c
	s.customers[c.ID] = &stored
	return nil
}

func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	delete(s.customers, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// InMemoryOrderStore is an OrderStore backed by a map
type InMemoryOrderStore struct {
	orders map[string]*Order
	order  []string
	mu     sync.RWMutex
}

func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{orders: make(map[string]*Order)}
}

func (s *InMemoryOrderStore) Add(o *Order) error {
	if o.ID == "" {
		return fmt.Errorf("%w: order ID is required", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s: %w", o.ID, ErrAlreadyExists)
	}
	stored := copyOrder(o)
	s.orders[o.ID] = stored
	s.order = append(s.order, o.ID)
	return nil
}

func (s *InMemoryOrderStore) Get(id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	if !exists {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return copyOrder(o), nil
}

func (s *InMemoryOrderStore) List(query string) ([]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Order, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		o := s.orders[s.order[i]]
		if o.matches(query) {
			list = append(list, copyOrder(o))
		}
	}
	return list, nil
}

func (s *InMemoryOrderStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[id]; !exists {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	delete(s.orders, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func copyOrder(o *Order) *Order {
	out := *o
	out.Items = append([]string(nil), o.Items...)
	return &out
}
