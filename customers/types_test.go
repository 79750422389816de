package customers

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func TestNewCustomer(t *testing.T) {
	c, err := NewCustomer("  Rahul Sharma ", "rahul@example.com", "", "Mumbai", testNow)
	if err != nil {
		t.Fatalf("NewCustomer() failed: %v", err)
	}

	if c.ID == "" {
		t.Error("Expected generated ID")
	}
	if c.Name != "Rahul Sharma" {
		t.Errorf("Expected trimmed name, got %q", c.Name)
	}
	if c.Segment != DefaultSegment {
		t.Errorf("Expected segment %q, got %q", DefaultSegment, c.Segment)
	}
	if !c.TotalSpend.IsZero() || c.Visits != 0 {
		t.Errorf("Expected no purchases, got spend %s visits %d", c.TotalSpend, c.Visits)
	}
	if !c.LastVisit.Equal(testNow) {
		t.Errorf("Expected last visit %v, got %v", testNow, c.LastVisit)
	}
}

func TestNewCustomerRequiresNameAndEmail(t *testing.T) {
	testCases := []struct {
		name  string
		cname string
		email string
	}{
		{"missing name", "", "a@example.com"},
		{"blank name", "   ", "a@example.com"},
		{"missing email", "Amit", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCustomer(tc.cname, tc.email, "", "", testNow)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestCustomerRecord(t *testing.T) {
	c := &Customer{
		ID:         "1",
		TotalSpend: decimal.RequireFromString("25000.50"),
		Visits:     15,
		LastVisit:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Age:        34,
		Segment:    "VIP",
		City:       "Mumbai",
	}

	rec := c.Record()
	if rec.ID != "1" {
		t.Errorf("Expected record ID 1, got %q", rec.ID)
	}

	want := map[string]any{
		"totalSpend": 25000.5,
		"visits":     15,
		"lastVisit":  c.LastVisit,
		"age":        34,
		"segment":    "VIP",
		"city":       "Mumbai",
	}
	for k, v := range want {
		if rec.Fields[k] != v {
			t.Errorf("field %s = %v, want %v", k, rec.Fields[k], v)
		}
	}
}

func TestCustomerRecordOmitsUnknowns(t *testing.T) {
	rec := (&Customer{ID: "4", Segment: "New"}).Record()

	if _, ok := rec.Fields["age"]; ok {
		t.Error("Zero age should be left out")
	}
	if _, ok := rec.Fields["lastVisit"]; ok {
		t.Error("Zero last visit should be left out")
	}
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if OrderStatus("lost").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(DemoOrders())

	if summary.Total != 6 {
		t.Errorf("Total = %d, want 6", summary.Total)
	}
	// 4500 + 2800 + 12500 + 1200 + 8900; the cancelled 3200 is excluded
	if want := decimal.NewFromInt(29900); !summary.Revenue.Equal(want) {
		t.Errorf("Revenue = %s, want %s", summary.Revenue, want)
	}
	if summary.Delivered != 3 || summary.Shipped != 1 || summary.Processing != 1 || summary.Cancelled != 1 {
		t.Errorf("Unexpected status counts: %+v", summary)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Total != 0 || !summary.Revenue.IsZero() {
		t.Errorf("Expected empty summary, got %+v", summary)
	}
}
