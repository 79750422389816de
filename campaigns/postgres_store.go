package campaigns

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const selectCampaign = `
	SELECT id, name, rules, expression, message, audience_size, status,
	       delivered, failed, created_at, updated_at
	FROM campaigns`

// PostgresStore implements Store backed by PostgreSQL. Rules are kept as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(c *Campaign) error {
	rulesJSON, err := json.Marshal(c.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO campaigns (id, name, rules, expression, message, audience_size,
		                       status, delivered, failed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Name, rulesJSON, c.Expression, c.Message, c.AudienceSize,
		string(c.Status), c.Delivered, c.Failed, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("campaign %s: %w", c.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(id string) (*Campaign, error) {
	c, err := scanCampaign(s.db.QueryRow(selectCampaign+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) List() ([]*Campaign, error) {
	return s.query(selectCampaign + ` ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListActive() ([]*Campaign, error) {
	return s.query(selectCampaign+` WHERE status = $1 ORDER BY created_at ASC`, string(StatusActive))
}

func (s *PostgresStore) query(q string, args ...any) ([]*Campaign, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var list []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) Update(c *Campaign) error {
	rulesJSON, err := json.Marshal(c.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	c.UpdatedAt = time.Now()

	err = s.db.QueryRow(`
		UPDATE campaigns
		SET name = $1, rules = $2, expression = $3, message = $4, audience_size = $5,
		    status = $6, delivered = $7, failed = $8, updated_at = $9
		WHERE id = $10
		RETURNING created_at
	`, c.Name, rulesJSON, c.Expression, c.Message, c.AudienceSize,
		string(c.Status), c.Delivered, c.Failed, c.UpdatedAt, c.ID).Scan(&c.CreatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("campaign %s: %w", c.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*Campaign, error) {
	var c Campaign
	var rulesJSON []byte
	var status string
	if err := row.Scan(&c.ID, &c.Name, &rulesJSON, &c.Expression, &c.Message, &c.AudienceSize,
		&status, &c.Delivered, &c.Failed, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rulesJSON, &c.Rules); err != nil {
		return nil, fmt.Errorf("invalid rules for campaign %s: %w", c.ID, err)
	}
	c.Status = Status(status)
	return &c, nil
}
