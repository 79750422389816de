package customers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// DemoCustomers returns the sample customer set used when no database is configured
func DemoCustomers() []*Customer {
	return []*Customer{
		{ID: "1", Name: "Rahul Sharma", Email: "rahul.sharma@email.com", Phone: "+91 98765 43210",
			TotalSpend: decimal.NewFromInt(25000), Visits: 15, LastVisit: day("2024-01-15"), Age: 34, Segment: "VIP", City: "Mumbai"},
		{ID: "2", Name: "Priya Patel", Email: "priya.patel@email.com", Phone: "+91 87654 32109",
			TotalSpend: decimal.NewFromInt(12000), Visits: 8, LastVisit: day("2024-01-10"), Age: 29, Segment: "Regular", City: "Delhi"},
		{ID: "3", Name: "Amit Kumar", Email: "amit.kumar@email.com", Phone: "+91 76543 21098",
			TotalSpend: decimal.NewFromInt(45000), Visits: 25, LastVisit: day("2024-01-18"), Age: 41, Segment: "VIP", City: "Bangalore"},
		{ID: "4", Name: "Sneha Gupta", Email: "sneha.gupta@email.com", Phone: "+91 65432 10987",
			TotalSpend: decimal.NewFromInt(8000), Visits: 5, LastVisit: day("2023-12-20"), Segment: "New", City: "Chennai"},
		{ID: "5", Name: "Vikash Singh", Email: "vikash.singh@email.com", Phone: "+91 54321 09876",
			TotalSpend: decimal.NewFromInt(18000), Visits: 12, LastVisit: day("2024-01-12"), Age: 37, Segment: "Regular", City: "Pune"},
	}
}

// DemoOrders returns the sample orders matching DemoCustomers
func DemoOrders() []*Order {
	return []*Order{
		{ID: "ORD001", CustomerID: "1", CustomerName: "Rahul Sharma", Amount: decimal.NewFromInt(4500),
			Status: StatusDelivered, Date: day("2024-01-15"), Items: []string{"Wireless Headphones", "Phone Case"}},
		{ID: "ORD002", CustomerID: "2", CustomerName: "Priya Patel", Amount: decimal.NewFromInt(2800),
			Status: StatusShipped, Date: day("2024-01-14"), Items: []string{"Summer Dress", "Sandals"}},
		{ID: "ORD003", CustomerID: "3", CustomerName: "Amit Kumar", Amount: decimal.NewFromInt(12500),
			Status: StatusDelivered, Date: day("2024-01-12"), Items: []string{"Laptop", "Mouse", "Keyboard"}},
		{ID: "ORD004", CustomerID: "4", CustomerName: "Sneha Gupta", Amount: decimal.NewFromInt(1200),
			Status: StatusProcessing, Date: day("2024-01-18"), Items: []string{"Book Set"}},
		{ID: "ORD005", CustomerID: "5", CustomerName: "Vikash Singh", Amount: decimal.NewFromInt(8900),
			Status: StatusDelivered, Date: day("2024-01-10"), Items: []string{"Smart Watch", "Fitness Band"}},
		{ID: "ORD006", CustomerID: "1", CustomerName: "Rahul Sharma", Amount: decimal.NewFromInt(3200),
			Status: StatusCancelled, Date: day("2024-01-08"), Items: []string{"Gaming Controller"}},
	}
}

// Seed loads the demo data straight into the stores. Customer statistics are
// taken as given rather than recomputed from the orders.
func Seed(customers Store, orders OrderStore) error {
	for _, c := range DemoCustomers() {
		if err := customers.Add(c); err != nil {
			return fmt.Errorf("failed to seed customer %s: %w", c.ID, err)
		}
	}
	for _, o := range DemoOrders() {
		if err := orders.Add(o); err != nil {
			return fmt.Errorf("failed to seed order %s: %w", o.ID, err)
		}
	}
	return nil
}
