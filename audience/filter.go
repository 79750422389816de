package audience

import (
	"errors"
	"time"

	"github.com/liamcoop/crm/internal/logger"
)

// Filter computes audiences. It keeps no state between calls, so one Filter
// can serve concurrent requests.
type Filter struct {
	registry *Registry
	clock    func() time.Time
}

// NewFilter creates a filter over the given registry using the wall clock
func NewFilter(registry *Registry) *Filter {
	return NewFilterWithClock(registry, time.Now)
}

// NewFilterWithClock creates a filter whose evaluation instant comes from clock
func NewFilterWithClock(registry *Registry, clock func() time.Time) *Filter {
	return &Filter{registry: registry, clock: clock}
}

// Now returns the filter's current evaluation instant
func (f *Filter) Now() time.Time {
	return f.clock()
}

// Registry returns the field registry the filter validates against
func (f *Filter) Registry() *Registry {
	return f.registry
}

// Apply validates chain and returns the records it matches, in input order.
// Records whose values cannot be coerced are left out and reported as
// diagnostics instead of failing the pass.
func (f *Filter) Apply(records []Record, chain Chain) (MatchResult, error) {
	if err := f.registry.Validate(chain); err != nil {
		return MatchResult{}, err
	}

	cmp := Comparator{Registry: f.registry, Now: f.clock()}
	result := MatchResult{Records: make([]Record, 0, len(records))}

	for _, rec := range records {
		matched, err := cmp.EvaluateChain(rec, chain)
		if err != nil {
			diag := Diagnostic{RecordID: rec.ID, Err: err}
			var ve *ValidationError
			if errors.As(err, &ve) {
				diag.Position = ve.Position
				diag.Err = ve.Err
			}
			logger.Debug("Skipping record in audience filter",
				"record_id", rec.ID,
				"position", diag.Position,
				"error", diag.Err,
			)
			result.Diagnostics = append(result.Diagnostics, diag)
			continue
		}
		if matched {
			result.Records = append(result.Records, rec)
		}
	}

	result.Count = len(result.Records)

	if len(result.Diagnostics) > 0 {
		logger.Warn("Audience filter skipped records",
			"skipped", len(result.Diagnostics),
			"matched", result.Count,
			"total", len(records),
		)
	}

	return result, nil
}

// Count is Apply without the matched records
func (f *Filter) Count(records []Record, chain Chain) (int, error) {
	result, err := f.Apply(records, chain)
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}
