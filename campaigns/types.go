package campaigns

import (
	"math"
	"strings"
	"time"

	"github.com/liamcoop/crm/audience"
)

// Status is a campaign's delivery state
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Campaign is a message sent to the audience selected by Rules
type Campaign struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Rules audience.Chain `json:"rules"`
	// Expression is Rules rendered as CEL
	Expression   string    `json:"expression"`
	Message      string    `json:"message"`
	AudienceSize int       `json:"audienceSize"`
	Status       Status    `json:"status"`
	Delivered    int       `json:"delivered"`
	Failed       int       `json:"failed"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DeliveryRate is the delivered share of the audience as a whole percentage
func (c *Campaign) DeliveryRate() int {
	if c.AudienceSize <= 0 {
		return 0
	}
	return int(math.Round(float64(c.Delivered) / float64(c.AudienceSize) * 100))
}

// Personalize fills the {name} placeholder in a campaign message
func Personalize(message, name string) string {
	return strings.ReplaceAll(message, "{name}", name)
}

// EvaluationResult is the outcome of testing one record against one campaign's rules
type EvaluationResult struct {
	CampaignID   string `json:"campaignId"`
	CampaignName string `json:"campaignName"`
	Matched      bool   `json:"matched"`
	// Message is the campaign's unpersonalized message, set only on a match
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Stats aggregates campaign delivery for the dashboard
type Stats struct {
	Campaigns    int `json:"campaigns"`
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Audience     int `json:"audience"`
	Delivered    int `json:"delivered"`
	Failed       int `json:"failed"`
	DeliveryRate int `json:"deliveryRate"`
}
