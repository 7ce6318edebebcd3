package bloodsugar

import (
	"testing"

	"github.com/jwulff/mylife-sync/internal/domain"
)

func TestClassifyRange(t *testing.T) {
	tests := []struct {
		mmol     float64
		expected RangeStatus
	}{
		{2.2, RangeUrgentLow},
		{2.9, RangeUrgentLow},
		{3.0, RangeLow},
		{3.8, RangeLow},
		{3.9, RangeNormal},
		{5.5, RangeNormal},
		{10.0, RangeNormal},
		{10.1, RangeHigh},
		{13.9, RangeHigh},
		{14.0, RangeVeryHigh},
		{22.2, RangeVeryHigh},
	}

	for _, tt := range tests {
		result := ClassifyRange(tt.mmol)
		if result != tt.expected {
			t.Errorf("ClassifyRange(%.1f) = %s, want %s", tt.mmol, result, tt.expected)
		}
	}
}

func TestGlucoseTypeFor(t *testing.T) {
	tests := []struct {
		entryType domain.EntryType
		expected  GlucoseType
		ok        bool
	}{
		{domain.EntryGlucose, GlucoseFinger, true},
		{domain.EntryGlucoseManual, GlucoseSensor, true},
		{domain.EntryBolus, "", false},
		{domain.EntryCarbs, "", false},
		{"Basal rate", "", false},
	}

	for _, tt := range tests {
		result, ok := GlucoseTypeFor(tt.entryType)
		if result != tt.expected || ok != tt.ok {
			t.Errorf("GlucoseTypeFor(%q) = (%q, %v), want (%q, %v)", tt.entryType, result, ok, tt.expected, tt.ok)
		}
	}
}
