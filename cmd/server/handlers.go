package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liamcoop/crm/audience"
	"github.com/liamcoop/crm/campaigns"
	"github.com/liamcoop/crm/customers"
	"github.com/liamcoop/crm/internal/logger"
)

// maxImportSize bounds a CSV import body
const maxImportSize = 10 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "memory"})
		return
	}

	if err := s.db.PingContext(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Store:  "postgres",
			Error:  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "postgres"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	list, err := s.customers.List("")
	if err != nil {
		respondStoreError(w, "failed to list customers", err)
		return
	}

	summary, err := s.ledger.Summary()
	if err != nil {
		respondStoreError(w, "failed to summarize orders", err)
		return
	}

	stats, err := s.campaigns.Stats()
	if err != nil {
		respondStoreError(w, "failed to summarize campaigns", err)
		return
	}

	respondJSON(w, http.StatusOK, DashboardResponse{
		Customers: len(list),
		Orders:    summary,
		Campaigns: stats,
		Counters:  logger.Snapshot(),
	})
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, FieldsResponse{Fields: s.filter.Registry().Fields()})
}

func (s *Server) handleDescribeField(w http.ResponseWriter, r *http.Request) {
	desc, err := s.filter.Registry().Describe(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, http.StatusNotFound, "field not found", err)
		return
	}
	respondJSON(w, http.StatusOK, desc)
}

func (s *Server) handleValidateRules(w http.ResponseWriter, r *http.Request) {
	var req RulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	expr, err := s.filter.Registry().Expression(req.Rules)
	if err != nil {
		respondStoreError(w, "invalid rule chain", err)
		return
	}

	respondJSON(w, http.StatusOK, ValidateResponse{Valid: true, Expression: expr})
}

func (s *Server) handlePreviewAudience(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	records := req.Records
	if records == nil {
		var err error
		records, err = s.customerRecords()
		if err != nil {
			respondStoreError(w, "failed to load customers", err)
			return
		}
	}

	result, err := s.campaigns.Preview(req.Rules, records)
	if err != nil {
		respondStoreError(w, "invalid rule chain", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) customerRecords() ([]audience.Record, error) {
	list, err := s.customers.List("")
	if err != nil {
		return nil, err
	}
	return customers.Records(list), nil
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := s.customers.List(r.URL.Query().Get("q"))
	if err != nil {
		respondStoreError(w, "failed to list customers", err)
		return
	}
	respondJSON(w, http.StatusOK, CustomersListResponse{Customers: list})
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Age < 0 {
		respondError(w, http.StatusBadRequest, "age cannot be negative", nil)
		return
	}

	c, err := customers.NewCustomer(req.Name, req.Email, req.Phone, req.City, time.Now().UTC())
	if err != nil {
		respondStoreError(w, "invalid customer", err)
		return
	}
	c.Age = req.Age
	if seg := strings.TrimSpace(req.Segment); seg != "" {
		c.Segment = seg
	}

	if err := s.customers.Add(c); err != nil {
		respondStoreError(w, "failed to create customer", err)
		return
	}

	logger.Info("Customer created", "customer_id", c.ID)
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.customers.Get(chi.URLParam(r, "customerId"))
	if err != nil {
		respondStoreError(w, "failed to get customer", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		respondError(w, http.StatusBadRequest, "name and email are required", nil)
		return
	}
	if req.Age < 0 {
		respondError(w, http.StatusBadRequest, "age cannot be negative", nil)
		return
	}

	c, err := s.ledger.UpdateProfile(chi.URLParam(r, "customerId"), func(c *customers.Customer) error {
		c.Name = name
		c.Email = email
		c.Phone = strings.TrimSpace(req.Phone)
		c.City = strings.TrimSpace(req.City)
		c.Age = req.Age
		if seg := strings.TrimSpace(req.Segment); seg != "" {
			c.Segment = seg
		}
		return nil
	})
	if err != nil {
		respondStoreError(w, "failed to update customer", err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerId")
	if err := s.customers.Delete(id); err != nil {
		respondStoreError(w, "failed to delete customer", err)
		return
	}

	logger.Info("Customer deleted", "customer_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportCustomers(w http.ResponseWriter, r *http.Request) {
	imported, rowErrors, err := customers.ImportCSV(http.MaxBytesReader(w, r.Body, maxImportSize), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid CSV", err)
		return
	}

	resp := ImportResponse{
		Customers: make([]*customers.Customer, 0, len(imported)),
		Errors:    rowErrors,
	}
	if resp.Errors == nil {
		resp.Errors = []customers.ImportError{}
	}

	for _, c := range imported {
		if err := s.customers.Add(c); err != nil {
			resp.Errors = append(resp.Errors, customers.ImportError{Err: fmt.Sprintf("%s: %v", c.Email, err)})
			continue
		}
		resp.Customers = append(resp.Customers, c)
	}
	resp.Imported = len(resp.Customers)

	logger.Info("Customers imported", "imported", resp.Imported, "rejected", len(resp.Errors))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCustomerCampaigns(w http.ResponseWriter, r *http.Request) {
	c, err := s.customers.Get(chi.URLParam(r, "customerId"))
	if err != nil {
		respondStoreError(w, "failed to get customer", err)
		return
	}

	results, err := s.campaigns.EvaluateAll(c.Record())
	if err != nil {
		respondStoreError(w, "failed to evaluate campaigns", err)
		return
	}

	for _, res := range results {
		if res.Matched {
			res.Message = campaigns.Personalize(res.Message, c.Name)
		}
	}

	respondJSON(w, http.StatusOK, CustomerCampaignsResponse{CustomerID: c.ID, Results: results})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.orders.List(r.URL.Query().Get("q"))
	if err != nil {
		respondStoreError(w, "failed to list orders", err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersListResponse{Orders: list})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	order := &customers.Order{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Status:     req.Status,
		Items:      req.Items,
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		order.Date = date
	}

	c, err := s.ledger.RecordOrder(order)
	if err != nil {
		respondStoreError(w, "failed to record order", err)
		return
	}

	respondJSON(w, http.StatusCreated, OrderResponse{Order: order, Customer: c})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (s *Server) handleOrderSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary()
	if err != nil {
		respondStoreError(w, "failed to summarize orders", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := s.campaigns.List()
	if err != nil {
		respondStoreError(w, "failed to list campaigns", err)
		return
	}
	respondJSON(w, http.StatusOK, CampaignsListResponse{Campaigns: list})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	records, err := s.customerRecords()
	if err != nil {
		respondStoreError(w, "failed to load customers", err)
		return
	}

	c := &campaigns.Campaign{ID: req.ID, Name: req.Name, Message: req.Message, Rules: req.Rules}
	result, err := s.campaigns.Create(c, records)
	if err != nil {
		respondStoreError(w, "failed to create campaign", err)
		return
	}

	respondJSON(w, http.StatusCreated, CampaignResponse{Campaign: c, Diagnostics: result.Diagnostics})
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.campaigns.Get(chi.URLParam(r, "campaignId"))
	if err != nil {
		respondStoreError(w, "failed to get campaign", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	records, err := s.customerRecords()
	if err != nil {
		respondStoreError(w, "failed to load customers", err)
		return
	}

	c := &campaigns.Campaign{
		ID:      chi.URLParam(r, "campaignId"),
		Name:    req.Name,
		Message: req.Message,
		Rules:   req.Rules,
	}
	result, err := s.campaigns.Update(c, records)
	if err != nil {
		respondStoreError(w, "failed to update campaign", err)
		return
	}

	respondJSON(w, http.StatusOK, CampaignResponse{Campaign: c, Diagnostics: result.Diagnostics})
}

func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignId")
	if err := s.campaigns.Delete(id); err != nil {
		respondStoreError(w, "failed to delete campaign", err)
		return
	}

	logger.Info("Campaign deleted", "campaign_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	c, err := s.campaigns.RecordDelivery(chi.URLParam(r, "campaignId"), req.Delivered, req.Failed)
	if err != nil {
		respondStoreError(w, "failed to record delivery", err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}

	var ve *audience.ValidationError
	if errors.As(err, &ve) {
		pos := ve.Position
		response.Position = &pos
	}

	respondJSON(w, status, response)
}

// respondStoreError maps domain errors onto HTTP statuses
func respondStoreError(w http.ResponseWriter, message string, err error) {
	respondError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	var ve *audience.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, customers.ErrInvalid),
		errors.Is(err, campaigns.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, customers.ErrNotFound),
		errors.Is(err, campaigns.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, customers.ErrAlreadyExists),
		errors.Is(err, campaigns.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
