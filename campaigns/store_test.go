package campaigns

import (
	"errors"
	"testing"
	"time"

	"github.com/liamcoop/crm/audience"
)

func newCampaign(id string, status Status) *Campaign {
	return &Campaign{
		ID:      id,
		Name:    "Campaign " + id,
		Message: "Hi {name}",
		Rules:   audience.Chain{{Field: "totalSpend", Operator: audience.OpGreater, Value: "5000"}},
		Status:  status,
	}
}

func TestInMemoryStoreAddGet(t *testing.T) {
	store := NewInMemoryStore()
	c := newCampaign("c1", StatusActive)

	if err := store.Add(c); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		t.Error("Add() should set timestamps")
	}

	got, err := store.Get("c1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != c.Name || len(got.Rules) != 1 {
		t.Errorf("Get() returned %+v", got)
	}

	got.Rules[0].Value = "1"
	again, _ := store.Get("c1")
	if again.Rules[0].Value != "5000" {
		t.Error("Store shares rules with the caller")
	}

	if err := store.Add(newCampaign("c1", StatusActive)); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}
	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStoreListOrder(t *testing.T) {
	store := NewInMemoryStore()
	store.Add(newCampaign("c1", StatusActive))
	store.Add(newCampaign("c2", StatusCompleted))
	store.Add(newCampaign("c3", StatusActive))

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 3 || list[0].ID != "c3" || list[2].ID != "c1" {
		t.Errorf("Expected newest first, got %v", campaignIDs(list))
	}

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 2 || active[0].ID != "c1" || active[1].ID != "c3" {
		t.Errorf("Expected active oldest first, got %v", campaignIDs(active))
	}
}

func TestInMemoryStoreUpdateDelete(t *testing.T) {
	store := NewInMemoryStore()
	c := newCampaign("c1", StatusActive)
	store.Add(c)
	created := c.CreatedAt

	time.Sleep(time.Millisecond)
	update := newCampaign("c1", StatusCompleted)
	if err := store.Update(update); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if !update.CreatedAt.Equal(created) {
		t.Error("Update() should preserve CreatedAt")
	}
	if !update.UpdatedAt.After(created) {
		t.Error("Update() should advance UpdatedAt")
	}

	if err := store.Update(newCampaign("missing", StatusActive)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Delete("c1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := store.Delete("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if list, _ := store.List(); len(list) != 0 {
		t.Errorf("Expected empty list after delete, got %v", campaignIDs(list))
	}
}

func campaignIDs(list []*Campaign) []string {
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids
}
