package main

import (
	"github.com/shopspring/decimal"

	"github.com/liamcoop/crm/audience"
	"github.com/liamcoop/crm/campaigns"
	"github.com/liamcoop/crm/customers"
)

// API request and response models

// RulesRequest carries a rule chain to validate
type RulesRequest struct {
	Rules audience.Chain `json:"rules"`
}

// PreviewRequest carries a rule chain and, optionally, the records to filter.
// Stored customers are used when Records is omitted.
type PreviewRequest struct {
	Rules   audience.Chain    `json:"rules"`
	Records []audience.Record `json:"records,omitempty"`
}

// ValidateResponse reports a valid chain and its CEL rendering
type ValidateResponse struct {
	Valid      bool   `json:"valid"`
	Expression string `json:"expression"`
}

// FieldsResponse lists the fields rules may reference
type FieldsResponse struct {
	Fields []audience.FieldDescriptor `json:"fields"`
}

// CustomerRequest is the editable part of a customer.
// Purchase statistics are maintained from orders.
type CustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	City    string `json:"city"`
	Segment string `json:"segment,omitempty"`
	Age     int    `json:"age,omitempty"`
}

// CustomersListResponse represents the response for listing customers
type CustomersListResponse struct {
	Customers []*customers.Customer `json:"customers"`
}

// ImportResponse reports the outcome of a CSV import
type ImportResponse struct {
	Imported  int                     `json:"imported"`
	Customers []*customers.Customer   `json:"customers"`
	Errors    []customers.ImportError `json:"errors"`
}

// CustomerCampaignsResponse lists the active campaigns evaluated for one customer
type CustomerCampaignsResponse struct {
	CustomerID string                        `json:"customerId"`
	Results    []*campaigns.EvaluationResult `json:"results"`
}

// OrderRequest represents the request body for recording an order.
// Date is YYYY-MM-DD or RFC 3339 and defaults to now.
type OrderRequest struct {
	CustomerID string                `json:"customerId"`
	Amount     decimal.Decimal       `json:"amount"`
	Status     customers.OrderStatus `json:"status,omitempty"`
	Date       string                `json:"date,omitempty"`
	Items      []string              `json:"items"`
}

// OrderResponse returns a recorded order with the customer it updated
type OrderResponse struct {
	Order    *customers.Order    `json:"order"`
	Customer *customers.Customer `json:"customer"`
}

// OrdersListResponse represents the response for listing orders
type OrdersListResponse struct {
	Orders []*customers.Order `json:"orders"`
}

// CampaignRequest represents the request body for creating or updating a campaign
type CampaignRequest struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Message string         `json:"message"`
	Rules   audience.Chain `json:"rules"`
}

// CampaignResponse returns a campaign with the customers skipped while sizing it
type CampaignResponse struct {
	Campaign    *campaigns.Campaign   `json:"campaign"`
	Diagnostics []audience.Diagnostic `json:"diagnostics,omitempty"`
}

// CampaignsListResponse represents the response for listing campaigns
type CampaignsListResponse struct {
	Campaigns []*campaigns.Campaign `json:"campaigns"`
}

// DeliveryRequest reports delivery outcomes for a campaign
type DeliveryRequest struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// DashboardResponse aggregates the CRM for the dashboard view
type DashboardResponse struct {
	Customers int                    `json:"customers"`
	Orders    customers.OrderSummary `json:"orders"`
	Campaigns campaigns.Stats        `json:"campaigns"`
	Counters  map[string]int64       `json:"counters"`
}

// ErrorResponse represents an error response.
// Position is set for rule chain errors.
type ErrorResponse struct {
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}
