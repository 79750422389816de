//go:build integration

package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/crm/audience"
)

// setupTestDB starts a PostgreSQL testcontainer and applies the schema
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../migrations/000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}

	return db, cleanup
}

func TestPostgresStore_Integration(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostgresStore(db)

	t.Run("AddGetRoundTripsRules", func(t *testing.T) {
		c := newCampaign("c1", StatusActive)
		c.Rules = audience.Chain{
			{Field: "totalSpend", Operator: audience.OpGreater, Value: "5000", Connector: audience.ConnectorOr},
			{Field: "city", Operator: audience.OpContains, Value: "mum"},
		}
		c.Expression = `(totalSpend > 5000.0 || city.containsFold("mum"))`
		c.AudienceSize = 3

		if err := store.Add(c); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}

		got, err := store.Get("c1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if len(got.Rules) != 2 || got.Rules[0].Connector != audience.ConnectorOr || got.Rules[1].Operator != audience.OpContains {
			t.Errorf("Rules did not round trip: %+v", got.Rules)
		}
		if got.Expression != c.Expression || got.AudienceSize != 3 || got.Status != StatusActive {
			t.Errorf("Unexpected campaign: %+v", got)
		}
	})

	t.Run("AddDuplicate", func(t *testing.T) {
		if err := store.Add(newCampaign("c1", StatusActive)); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("Expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("ListActive", func(t *testing.T) {
		store.Add(newCampaign("c2", StatusCompleted))
		store.Add(newCampaign("c3", StatusActive))

		active, err := store.ListActive()
		if err != nil {
			t.Fatalf("ListActive() failed: %v", err)
		}
		if len(active) != 2 || active[0].ID != "c1" || active[1].ID != "c3" {
			t.Errorf("ListActive() = %v, want [c1 c3]", campaignIDs(active))
		}

		all, err := store.List()
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(all) != 3 || all[0].ID != "c3" {
			t.Errorf("List() = %v, want newest first", campaignIDs(all))
		}
	})

	t.Run("Update", func(t *testing.T) {
		c, _ := store.Get("c1")
		c.Delivered = 3
		c.Status = StatusCompleted
		if err := store.Update(c); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}

		got, _ := store.Get("c1")
		if got.Delivered != 3 || got.Status != StatusCompleted {
			t.Errorf("Update() not applied: %+v", got)
		}

		if err := store.Update(newCampaign("missing", StatusActive)); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("EngineOverPostgres", func(t *testing.T) {
		filter := audience.NewFilter(audience.Default())
		engine, err := NewEngine(filter, store)
		if err != nil {
			t.Fatalf("NewEngine() failed: %v", err)
		}

		records := []audience.Record{
			{ID: "1", Fields: map[string]any{"totalSpend": 12000.0}},
			{ID: "2", Fields: map[string]any{"totalSpend": 100.0}},
		}
		c := &Campaign{Name: "Big spenders", Message: "Hi {name}", Rules: highValue()}
		if _, err := engine.Create(c, records); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		results, err := engine.EvaluateAll(records[0])
		if err != nil {
			t.Fatalf("EvaluateAll() failed: %v", err)
		}
		matched := 0
		for _, r := range results {
			if r.Matched {
				matched++
			}
		}
		// c3 and the new campaign both select spend over the threshold
		if matched != 2 {
			t.Errorf("Expected 2 matching campaigns, got %d: %+v", matched, results)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete("c2"); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if err := store.Delete("c2"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
