package logbook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jwulff/mylife-sync/internal/bloodsugar"
	"github.com/jwulff/mylife-sync/internal/domain"
	"github.com/jwulff/mylife-sync/internal/treatment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// portalDay is an afternoon of logbook rows in scrape order (newest first).
func portalDay() []domain.Entry {
	return []domain.Entry{
		domain.NewEntry("110", domain.EntryGlucoseManual, "6.4mmol/L", "10.01.24", "18:09"),
		domain.NewEntry("109", domain.EntryGlucoseManual, "6.0mmol/L", "10.01.24", "18:00"),
		domain.NewEntry("108", domain.EntryCarbs, "10g carb", "10.01.24", "16:31"),
		domain.NewEntry("107", domain.EntryGlucose, "4.0mmol/L", "10.01.24", "16:30"),
		domain.NewEntry("106", domain.EntryGlucoseManual, "4.2mmol/L", "10.01.24", "16:30"),
		domain.NewEntry("105", domain.EntryBolus, "2.5U", "10.01.24", "12:01"),
		domain.NewEntry("104", domain.EntryGlucose, "8.3mmol/L", "10.01.24", "12:00"),
		domain.NewEntry("103", domain.EntryCarbs, "30g carb", "10.01.24", "12:00"),
		domain.NewEntry("102", domain.EntryBolus, "oops", "10.01.24", "09:00"),
		domain.NewEntry("101", domain.EntryCarbs, "15g carb", "bad-date", "08:00"),
	}
}

func newTestReconciler(t *testing.T, opts treatment.Options) Reconciler {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata not available")
	}
	return NewReconciler(NewGrouper(loc, 5*time.Minute), treatment.NewBuilder(opts))
}

func TestReconcilePortalDay(t *testing.T) {
	r := newTestReconciler(t, treatment.Options{SetSourceID: true})

	report := r.Reconcile(portalDay())

	assert.Equal(t, 10, report.Entries)
	require.Len(t, report.Groups, 5)
	assert.Equal(t, "sensor readings", report.Groups[0].Rule)
	assert.Equal(t, "sensor readings", report.Groups[1].Rule)
	assert.Empty(t, report.Groups[2].Rule, "carbs with both glucose types is unrecognized")
	assert.Equal(t, "meal bolus with finger check", report.Groups[3].Rule)
	assert.Equal(t, "boluses", report.Groups[4].Rule)

	require.Len(t, report.Treatments, 3)
	assert.Equal(t, treatment.EventBGCheck, report.Treatments[0].EventType)
	assert.Equal(t, bloodsugar.GlucoseSensor, report.Treatments[0].GlucoseType)
	assert.Equal(t, "110", report.Treatments[0].ID)
	assert.Equal(t, treatment.EventBGCheck, report.Treatments[1].EventType)
	assert.Equal(t, "109", report.Treatments[1].ID)

	meal := report.Treatments[2]
	assert.Equal(t, treatment.EventMealBolus, meal.EventType)
	assert.Equal(t, "105", meal.ID)
	assert.Equal(t, 2.5, *meal.Insulin)
	assert.Equal(t, 30, *meal.Carbs)
	assert.Equal(t, 8.3, *meal.Glucose)
	assert.Equal(t, "2024-01-10T12:01:00Z", meal.CreatedAt.String())

	require.Len(t, report.Unrecognized, 1)
	assert.Equal(t, []string{"108", "107", "106"}, report.Unrecognized[0].Group.IDs())

	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "101", report.Skipped[0].EntryID, "bad dates are reported first")
	assert.Equal(t, "102", report.Skipped[1].EntryID)
	assert.Empty(t, report.Warnings)
}

func TestReconcileSummerTimeOffset(t *testing.T) {
	r := newTestReconciler(t, treatment.Options{})

	report := r.Reconcile([]domain.Entry{
		domain.NewEntry("1", domain.EntryCarbs, "20g carb", "26.08.23", "22:48"),
	})

	require.Len(t, report.Treatments, 1)
	assert.Equal(t, "2023-08-26T21:48:00Z", report.Treatments[0].CreatedAt.String())
}

func TestReconcileIsIdempotent(t *testing.T) {
	r := newTestReconciler(t, treatment.Options{SetSourceID: true})

	first, err := json.Marshal(r.Reconcile(portalDay()).Treatments)
	require.NoError(t, err)
	second, err := json.Marshal(r.Reconcile(portalDay()).Treatments)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestReconcileEmpty(t *testing.T) {
	r := newTestReconciler(t, treatment.Options{})

	report := r.Reconcile(nil)

	assert.Zero(t, report.Entries)
	assert.Empty(t, report.Groups)
	assert.Empty(t, report.Treatments)
}
