package bloodsugar

import "github.com/jwulff/mylife-sync/internal/domain"

// GlucoseType tells Nightscout where a glucose value came from.
type GlucoseType string

const (
	GlucoseFinger GlucoseType = "Finger"
	GlucoseSensor GlucoseType = "Sensor"
)

// UnitsMmol is the Nightscout units value for mmol/L readings.
// Values are always uploaded in mmol/L, no mg/dL conversion happens.
const UnitsMmol = "mmol"

// GlucoseTypeFor maps a portal row type to its glucose source.
// A manual entry on the portal is a reading copied from the sensor.
func GlucoseTypeFor(t domain.EntryType) (GlucoseType, bool) {
	switch t {
	case domain.EntryGlucose:
		return GlucoseFinger, true
	case domain.EntryGlucoseManual:
		return GlucoseSensor, true
	}
	return "", false
}

// RangeStatus represents the glucose range classification.
type RangeStatus string

const (
	RangeUrgentLow RangeStatus = "urgentLow"
	RangeLow       RangeStatus = "low"
	RangeNormal    RangeStatus = "normal"
	RangeHigh      RangeStatus = "high"
	RangeVeryHigh  RangeStatus = "veryHigh"
)

// Glucose thresholds in mmol/L.
const (
	ThresholdUrgentLow = 3.0
	ThresholdLow       = 3.9
	ThresholdHigh      = 10.0
	ThresholdVeryHigh  = 13.9
)

// ClassifyRange determines the range status for a glucose value in mmol/L.
func ClassifyRange(mmol float64) RangeStatus {
	if mmol < ThresholdUrgentLow {
		return RangeUrgentLow
	}
	if mmol < ThresholdLow {
		return RangeLow
	}
	if mmol <= ThresholdHigh {
		return RangeNormal
	}
	if mmol <= ThresholdVeryHigh {
		return RangeHigh
	}
	return RangeVeryHigh
}
