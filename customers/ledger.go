package customers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/crm/internal/logger"
)

// Ledger records orders and keeps each customer's purchase statistics in step
type Ledger struct {
	customers Store
	orders    OrderStore
	mu        sync.Mutex
}

func NewLedger(customers Store, orders OrderStore) *Ledger {
	return &Ledger{customers: customers, orders: orders}
}

// RecordOrder stores o and, unless it is cancelled, adds its amount to the
// customer's total spend, counts a visit and moves the last visit forward.
// It returns the customer as updated.
func (l *Ledger) RecordOrder(o *Order) (*Customer, error) {
	if o.Status == "" {
		o.Status = StatusProcessing
	}
	if !o.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrInvalid, o.Status)
	}
	if o.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: order amount cannot be negative", ErrInvalid)
	}
	if o.ID == "" {
		o.ID = "ORD-" + strings.ToUpper(uuid.NewString()[:8])
	}
	if o.Date.IsZero() {
		o.Date = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.customers.Get(o.CustomerID)
	if err != nil {
		return nil, err
	}
	if o.CustomerName == "" {
		o.CustomerName = c.Name
	}

	if err := l.orders.Add(o); err != nil {
		return nil, err
	}

	if o.Status == StatusCancelled {
		return c, nil
	}

	c.TotalSpend = c.TotalSpend.Add(o.Amount)
	c.Visits++
	if o.Date.After(c.LastVisit) {
		c.LastVisit = o.Date
	}
	if err := l.customers.Update(c); err != nil {
		// an order without its statistics would be counted by Summary only
		if delErr := l.orders.Delete(o.ID); delErr != nil {
			logger.Error("Failed to roll back order",
				"order_id", o.ID,
				"customer_id", o.CustomerID,
				"error", delErr,
			)
		}
		return nil, fmt.Errorf("failed to update customer statistics: %w", err)
	}
	return c, nil
}

// UpdateProfile applies edit to a stored customer under the ledger lock, so a
// profile edit cannot write back purchase statistics that an order changed
// in the meantime. It returns the customer as updated.
func (l *Ledger) UpdateProfile(id string, edit func(c *Customer) error) (*Customer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.customers.Get(id)
	if err != nil {
		return nil, err
	}
	if err := edit(c); err != nil {
		return nil, err
	}
	if err := l.customers.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Summary totals every stored order
func (l *Ledger) Summary() (OrderSummary, error) {
	orders, err := l.orders.List("")
	if err != nil {
		return OrderSummary{}, err
	}
	return Summarize(orders), nil
}
