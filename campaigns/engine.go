package campaigns

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/liamcoop/crm/audience"
	"github.com/liamcoop/crm/internal/logger"
)

// ErrInvalid marks campaign input that cannot be accepted
var ErrInvalid = errors.New("invalid campaign")

// Engine validates campaign rules, computes audiences and keeps a compiled
// program per active campaign for single-customer evaluation.
// Safe for concurrent use.
type Engine struct {
	filter   *audience.Filter
	store    Store
	cache    Cache
	programs map[string]*audience.Program // campaignID -> compiled rules
	mu       sync.RWMutex

	// writeMu serializes every read-modify-write of a stored campaign
	writeMu sync.Mutex
}

// NewEngine creates an engine and compiles every active campaign in store
func NewEngine(filter *audience.Filter, store Store) (*Engine, error) {
	en := &Engine{
		filter:   filter,
		store:    store,
		cache:    NewInMemoryCache(DefaultCacheConfig()),
		programs: make(map[string]*audience.Program),
	}

	if err := en.CompileAll(); err != nil {
		return nil, fmt.Errorf("failed to compile campaigns: %w", err)
	}

	return en, nil
}

// Compile validates and compiles a campaign's rules and caches the program
func (en *Engine) Compile(campaignID string, chain audience.Chain) (*audience.Program, error) {
	prog, err := en.filter.Compile(chain)
	if err != nil {
		return nil, err
	}

	en.setProgram(campaignID, prog)
	return prog, nil
}

func (en *Engine) setProgram(campaignID string, prog *audience.Program) {
	en.mu.Lock()
	en.programs[campaignID] = prog
	en.mu.Unlock()
}

// CompileAll compiles every active campaign and primes the cache
func (en *Engine) CompileAll() error {
	active, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, c := range active {
		if _, err := en.Compile(c.ID, c.Rules); err != nil {
			return fmt.Errorf("failed to compile campaign %s: %w", c.ID, err)
		}
	}

	en.cache.Set(active)
	logger.Info("Compiled active campaigns", "count", len(active))
	return nil
}

// Preview computes the audience a chain would select without saving anything
func (en *Engine) Preview(chain audience.Chain, records []audience.Record) (audience.MatchResult, error) {
	return en.filter.Apply(records, chain)
}

func validateContent(c *Campaign) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Message = strings.TrimSpace(c.Message)
	if c.Name == "" || c.Message == "" || len(c.Rules) == 0 {
		return fmt.Errorf("%w: name, message and at least one rule are required", ErrInvalid)
	}
	return nil
}

// Create validates c, sizes its audience over records and stores it as active.
// The match result is returned so callers can show who was selected.
func (en *Engine) Create(c *Campaign, records []audience.Record) (audience.MatchResult, error) {
	if err := validateContent(c); err != nil {
		return audience.MatchResult{}, err
	}

	result, err := en.filter.Apply(records, c.Rules)
	if err != nil {
		return audience.MatchResult{}, err
	}

	// published only after the store accepts the campaign
	prog, err := en.filter.Compile(c.Rules)
	if err != nil {
		return audience.MatchResult{}, err
	}

	en.writeMu.Lock()
	defer en.writeMu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, err := en.store.Get(c.ID); err == nil {
		return audience.MatchResult{}, fmt.Errorf("campaign %s: %w", c.ID, ErrAlreadyExists)
	}

	c.Expression = prog.Expression
	c.AudienceSize = result.Count
	c.Status = StatusActive
	c.Delivered = 0
	c.Failed = 0

	if err := en.store.Add(c); err != nil {
		return audience.MatchResult{}, err
	}

	en.setProgram(c.ID, prog)
	en.cache.Invalidate()

	logger.Info("Campaign created",
		"campaign_id", c.ID,
		"audience_size", c.AudienceSize,
		"skipped", len(result.Diagnostics),
	)

	return result, nil
}

// Update replaces an active campaign's name, message and rules and recomputes
// its audience. Delivery counters are kept. Finished campaigns are rejected.
func (en *Engine) Update(c *Campaign, records []audience.Record) (audience.MatchResult, error) {
	if err := validateContent(c); err != nil {
		return audience.MatchResult{}, err
	}

	en.writeMu.Lock()
	defer en.writeMu.Unlock()

	existing, err := en.store.Get(c.ID)
	if err != nil {
		return audience.MatchResult{}, err
	}
	if existing.Status != StatusActive {
		return audience.MatchResult{}, fmt.Errorf("%w: campaign %s is %s", ErrInvalid, c.ID, existing.Status)
	}

	result, err := en.filter.Apply(records, c.Rules)
	if err != nil {
		return audience.MatchResult{}, err
	}
	if result.Count < existing.Delivered+existing.Failed {
		return audience.MatchResult{}, fmt.Errorf("%w: audience of %d is smaller than the %d messages already sent",
			ErrInvalid, result.Count, existing.Delivered+existing.Failed)
	}

	prog, err := en.filter.Compile(c.Rules)
	if err != nil {
		return audience.MatchResult{}, err
	}

	existing.Name = c.Name
	existing.Message = c.Message
	existing.Rules = c.Rules
	existing.Expression = prog.Expression
	existing.AudienceSize = result.Count

	if err := en.store.Update(existing); err != nil {
		return audience.MatchResult{}, err
	}

	en.setProgram(existing.ID, prog)
	en.cache.Invalidate()

	*c = *existing
	return result, nil
}

// Delete removes a campaign and its compiled program
func (en *Engine) Delete(campaignID string) error {
	en.writeMu.Lock()
	defer en.writeMu.Unlock()

	if err := en.store.Delete(campaignID); err != nil {
		return err
	}
	en.dropProgram(campaignID)
	en.cache.Invalidate()
	return nil
}

func (en *Engine) Get(campaignID string) (*Campaign, error) {
	return en.store.Get(campaignID)
}

func (en *Engine) List() ([]*Campaign, error) {
	return en.store.List()
}

// RecordDelivery adds delivery outcomes to an active campaign. Once every
// audience member has an outcome the campaign is completed, or failed if
// nothing was delivered.
func (en *Engine) RecordDelivery(campaignID string, delivered, failed int) (*Campaign, error) {
	if delivered < 0 || failed < 0 {
		return nil, fmt.Errorf("%w: delivery counts cannot be negative", ErrInvalid)
	}

	en.writeMu.Lock()
	defer en.writeMu.Unlock()

	c, err := en.store.Get(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, fmt.Errorf("%w: campaign %s is %s", ErrInvalid, campaignID, c.Status)
	}

	c.Delivered += delivered
	c.Failed += failed
	if c.Delivered+c.Failed > c.AudienceSize {
		return nil, fmt.Errorf("%w: %d outcomes exceed audience of %d", ErrInvalid, c.Delivered+c.Failed, c.AudienceSize)
	}

	if c.Delivered+c.Failed == c.AudienceSize {
		c.Status = StatusCompleted
		if c.Delivered == 0 && c.Failed > 0 {
			c.Status = StatusFailed
		}
	}

	if err := en.store.Update(c); err != nil {
		return nil, err
	}

	if c.Status != StatusActive {
		en.dropProgram(c.ID)
		en.cache.Invalidate()
		logger.Info("Campaign finished",
			"campaign_id", c.ID,
			"status", c.Status,
			"delivery_rate", c.DeliveryRate(),
		)
	}

	return c, nil
}

func (en *Engine) dropProgram(campaignID string) {
	en.mu.Lock()
	delete(en.programs, campaignID)
	en.mu.Unlock()
}

func (en *Engine) activeCampaigns() ([]*Campaign, error) {
	active := en.cache.Get()
	if active == nil {
		var err error
		active, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(active)
	}
	return active, nil
}

// EvaluateAll tests one record against every active campaign.
// A campaign that cannot be evaluated is reported in its result and does not
// stop the others.
func (en *Engine) EvaluateAll(rec audience.Record) ([]*EvaluationResult, error) {
	active, err := en.activeCampaigns()
	if err != nil {
		return nil, err
	}

	now := en.filter.Now()
	results := make([]*EvaluationResult, 0, len(active))
	for _, c := range active {
		result := &EvaluationResult{CampaignID: c.ID, CampaignName: c.Name}

		en.mu.RLock()
		prog, exists := en.programs[c.ID]
		en.mu.RUnlock()

		if !exists {
			prog, err = en.Compile(c.ID, c.Rules)
			if err != nil {
				result.Error = fmt.Sprintf("campaign %s is not compiled: %v", c.ID, err)
				results = append(results, result)
				continue
			}
		}

		matched, err := prog.Matches(rec, now)
		if err != nil {
			result.Error = err.Error()
		}
		result.Matched = matched
		if matched {
			result.Message = c.Message
		}
		results = append(results, result)
	}

	return results, nil
}

// Stats totals delivery across all campaigns
func (en *Engine) Stats() (Stats, error) {
	list, err := en.store.List()
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, c := range list {
		s.Campaigns++
		switch c.Status {
		case StatusActive:
			s.Active++
		case StatusCompleted:
			s.Completed++
		}
		s.Audience += c.AudienceSize
		s.Delivered += c.Delivered
		s.Failed += c.Failed
	}
	if sent := s.Delivered + s.Failed; sent > 0 {
		s.DeliveryRate = (&Campaign{AudienceSize: sent, Delivered: s.Delivered}).DeliveryRate()
	}
	return s, nil
}
