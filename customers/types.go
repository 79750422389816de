package customers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liamcoop/crm/audience"
)

// DefaultSegment is assigned to customers created without one
const DefaultSegment = "New"

// Customer is a CRM contact with the purchase statistics rules target
type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone,omitempty"`
	TotalSpend decimal.Decimal `json:"totalSpend"`
	Visits     int             `json:"visits"`
	LastVisit  time.Time       `json:"lastVisit"`
	// Age is zero when unknown; age rules then skip the customer
	Age       int       `json:"age,omitempty"`
	Segment   string    `json:"segment"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewCustomer creates a customer with no purchases yet. Name and email are required.
func NewCustomer(name, email, phone, city string, now time.Time) (*Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalid)
	}

	return &Customer{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Phone:      strings.TrimSpace(phone),
		City:       strings.TrimSpace(city),
		TotalSpend: decimal.Zero,
		LastVisit:  now,
		Segment:    DefaultSegment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Record converts the customer into the attribute set audience rules evaluate.
// Unknown values (zero age, zero last visit) are left out.
func (c *Customer) Record() audience.Record {
	fields := map[string]any{
		"totalSpend": c.TotalSpend.InexactFloat64(),
		"visits":     c.Visits,
		"city":       c.City,
		"segment":    c.Segment,
	}
	if !c.LastVisit.IsZero() {
		fields["lastVisit"] = c.LastVisit
	}
	if c.Age > 0 {
		fields["age"] = c.Age
	}
	return audience.Record{ID: c.ID, Fields: fields}
}

// Records converts customers in order
func Records(list []*Customer) []audience.Record {
	out := make([]audience.Record, 0, len(list))
	for _, c := range list {
		out = append(out, c.Record())
	}
	return out
}

func (c *Customer) matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.Email), q) ||
		strings.Contains(strings.ToLower(c.City), q)
}

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is a purchase by a customer
type Order struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	Amount       decimal.Decimal `json:"amount"`
	Status       OrderStatus     `json:"status"`
	Date         time.Time       `json:"date"`
	Items        []string        `json:"items"`
}

func (o *Order) matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(o.ID), q) || strings.Contains(strings.ToLower(o.CustomerName), q) {
		return true
	}
	for _, item := range o.Items {
		if strings.Contains(strings.ToLower(item), q) {
			return true
		}
	}
	return false
}

// OrderSummary aggregates orders for the dashboard
type OrderSummary struct {
	Total      int             `json:"total"`
	Revenue    decimal.Decimal `json:"revenue"`
	Delivered  int             `json:"delivered"`
	Shipped    int             `json:"shipped"`
	Processing int             `json:"processing"`
	Cancelled  int             `json:"cancelled"`
}

// Summarize totals orders. Cancelled orders do not count toward revenue.
func Summarize(orders []*Order) OrderSummary {
	s := OrderSummary{Total: len(orders), Revenue: decimal.Zero}
	for _, o := range orders {
		switch o.Status {
		case StatusDelivered:
			s.Delivered++
		case StatusShipped:
			s.Shipped++
		case StatusProcessing:
			s.Processing++
		case StatusCancelled:
			s.Cancelled++
			continue
		}
		s.Revenue = s.Revenue.Add(o.Amount)
	}
	return s
}
