// Package treatment builds Nightscout treatment records.
package treatment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwulff/mylife-sync/internal/bloodsugar"
)

// EventType is the Nightscout careportal event name.
type EventType string

const (
	EventBGCheck         EventType = "BG Check"
	EventMealBolus       EventType = "Meal Bolus"
	EventCorrectionBolus EventType = "Correction Bolus"
	EventCarbCorrection  EventType = "Carb Correction"
)

// DefaultEnteredBy identifies records created by this tool.
const DefaultEnteredBy = "mylife uploader"

// instantLayout always renders a literal Z, never a numeric offset.
const instantLayout = "2006-01-02T15:04:05Z"

// Instant is a UTC timestamp serialized as e.g. "2023-08-26T18:25:00Z".
type Instant time.Time

// NewInstant truncates t to whole seconds in UTC.
func NewInstant(t time.Time) Instant {
	return Instant(t.UTC().Truncate(time.Second))
}

// Time returns the instant as a time.Time.
func (i Instant) Time() time.Time {
	return time.Time(i)
}

// String formats the instant in the Nightscout created_at layout.
func (i Instant) String() string {
	return time.Time(i).UTC().Format(instantLayout)
}

// MarshalJSON implements json.Marshaler.
func (i Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON accepts any RFC 3339 timestamp.
func (i *Instant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse created_at: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("failed to parse created_at: %w", err)
	}
	*i = NewInstant(t)
	return nil
}

// Treatment is a single Nightscout treatment record.
type Treatment struct {
	ID          string                 `json:"_id,omitempty"` // Portal row id, only with SetSourceID
	EventType   EventType              `json:"eventType"`
	Insulin     *float64               `json:"insulin,omitempty"` // Units of insulin
	Carbs       *int                   `json:"carbs,omitempty"`   // Grams of carbohydrates
	Glucose     *float64               `json:"glucose,omitempty"` // mmol/L
	GlucoseType bloodsugar.GlucoseType `json:"glucoseType,omitempty"`
	Units       string                 `json:"units,omitempty"`
	CreatedAt   Instant                `json:"created_at"`
	EnteredBy   string                 `json:"enteredBy"`
}

// Time returns when the treatment happened.
func (t Treatment) Time() time.Time {
	return t.CreatedAt.Time()
}

// HasGlucose reports whether a glucose reading is attached.
func (t Treatment) HasGlucose() bool {
	return t.Glucose != nil
}

// After returns the treatments created strictly after cutoff, keeping order.
// A zero cutoff keeps everything.
func After(treatments []Treatment, cutoff time.Time) []Treatment {
	if cutoff.IsZero() {
		return treatments
	}
	kept := make([]Treatment, 0, len(treatments))
	for _, t := range treatments {
		if t.Time().After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
