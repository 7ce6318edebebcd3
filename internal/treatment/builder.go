package treatment

import (
	"time"

	"github.com/jwulff/mylife-sync/internal/bloodsugar"
)

// Options holds the conventions shared by every built record.
type Options struct {
	// EnteredBy is written to every record. Empty means DefaultEnteredBy.
	EnteredBy string

	// SetSourceID forwards the portal row id as the Nightscout _id.
	// Off by default since it exposes the portal id as a primary key.
	SetSourceID bool
}

// Reading is a glucose value with its source.
type Reading struct {
	Value float64 // mmol/L
	Type  bloodsugar.GlucoseType
}

// Builder constructs treatment records. It does no validation beyond
// what its arguments require.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder for the given options.
func NewBuilder(opts Options) Builder {
	if opts.EnteredBy == "" {
		opts.EnteredBy = DefaultEnteredBy
	}
	return Builder{opts: opts}
}

// Options returns the builder's effective options.
func (b Builder) Options() Options {
	return b.opts
}

func (b Builder) base(event EventType, at time.Time, sourceID string) Treatment {
	t := Treatment{
		EventType: event,
		CreatedAt: NewInstant(at),
		EnteredBy: b.opts.EnteredBy,
	}
	if b.opts.SetSourceID && sourceID != "" {
		t.ID = sourceID
	}
	return t
}

func withReading(t Treatment, r *Reading) Treatment {
	if r == nil {
		return t
	}
	glucose := r.Value
	t.Glucose = &glucose
	t.GlucoseType = r.Type
	t.Units = bloodsugar.UnitsMmol
	return t
}

// BGCheck builds a standalone glucose check.
func (b Builder) BGCheck(r Reading, at time.Time, sourceID string) Treatment {
	return withReading(b.base(EventBGCheck, at, sourceID), &r)
}

// MealBolus builds a bolus with carbs and an optional glucose reading.
func (b Builder) MealBolus(insulin float64, carbs int, r *Reading, at time.Time, sourceID string) Treatment {
	t := b.base(EventMealBolus, at, sourceID)
	t.Insulin = &insulin
	t.Carbs = &carbs
	return withReading(t, r)
}

// CorrectionBolus builds a bolus without carbs and an optional glucose reading.
func (b Builder) CorrectionBolus(insulin float64, r *Reading, at time.Time, sourceID string) Treatment {
	t := b.base(EventCorrectionBolus, at, sourceID)
	t.Insulin = &insulin
	return withReading(t, r)
}

// CarbCorrection builds carbs without insulin and an optional glucose reading.
func (b Builder) CarbCorrection(carbs int, r *Reading, at time.Time, sourceID string) Treatment {
	t := b.base(EventCarbCorrection, at, sourceID)
	t.Carbs = &carbs
	return withReading(t, r)
}
