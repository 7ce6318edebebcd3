package logbook

import (
	"github.com/jwulff/mylife-sync/internal/bloodsugar"
	"github.com/jwulff/mylife-sync/internal/domain"
	"github.com/jwulff/mylife-sync/internal/treatment"
)

// Shape is the kind of treatment a rule produces.
type Shape string

const (
	ShapeGlucoseCheck    Shape = "glucose check"
	ShapeMealBolus       Shape = "meal bolus"
	ShapeCorrectionBolus Shape = "correction bolus"
	ShapeCarbCorrection  Shape = "carb correction"
)

// Rule is one row of the classification table. A group matches when its
// set of distinct entry types equals Types and, if Size is set, it holds
// exactly Size entries.
type Rule struct {
	Name  string
	Types []domain.EntryType
	Size  int // 0 matches any group size
	Shape Shape

	// Glucose lists the entry types that may supply the glucose reading,
	// most preferred first. Empty means the treatment carries none.
	Glucose []domain.EntryType

	// PerRow emits one treatment per entry instead of one per group.
	PerRow bool
}

const (
	bolus         = domain.EntryBolus
	finger        = domain.EntryGlucose
	sensor        = domain.EntryGlucoseManual
	carbohydrates = domain.EntryCarbs
)

// Rules is the classification table. The first matching rule wins.
var Rules = []Rule{
	{Name: "meal bolus with finger check and sensor entry", Types: []domain.EntryType{bolus, finger, sensor, carbohydrates}, Size: 4, Shape: ShapeMealBolus, Glucose: []domain.EntryType{finger}},
	{Name: "meal bolus with finger check", Types: []domain.EntryType{bolus, finger, carbohydrates}, Size: 3, Shape: ShapeMealBolus, Glucose: []domain.EntryType{finger}},
	{Name: "meal bolus with sensor reading", Types: []domain.EntryType{bolus, sensor, carbohydrates}, Size: 3, Shape: ShapeMealBolus, Glucose: []domain.EntryType{sensor}},
	{Name: "correction bolus with finger check", Types: []domain.EntryType{bolus, finger}, Size: 2, Shape: ShapeCorrectionBolus, Glucose: []domain.EntryType{finger}},
	{Name: "correction bolus with sensor reading", Types: []domain.EntryType{bolus, sensor}, Size: 2, Shape: ShapeCorrectionBolus, Glucose: []domain.EntryType{sensor}},
	{Name: "correction bolus with finger check and sensor entry", Types: []domain.EntryType{bolus, finger, sensor}, Size: 3, Shape: ShapeCorrectionBolus, Glucose: []domain.EntryType{finger, sensor}},
	{Name: "meal bolus without glucose", Types: []domain.EntryType{carbohydrates, bolus}, Size: 2, Shape: ShapeMealBolus},
	{Name: "carb correction with finger check", Types: []domain.EntryType{carbohydrates, finger}, Size: 2, Shape: ShapeCarbCorrection, Glucose: []domain.EntryType{finger}},
	{Name: "carb correction with sensor reading", Types: []domain.EntryType{carbohydrates, sensor}, Size: 2, Shape: ShapeCarbCorrection, Glucose: []domain.EntryType{sensor}},
	{Name: "carbs", Types: []domain.EntryType{carbohydrates}, Shape: ShapeCarbCorrection, PerRow: true},
	{Name: "finger checks", Types: []domain.EntryType{finger}, Shape: ShapeGlucoseCheck, PerRow: true},
	{Name: "sensor readings", Types: []domain.EntryType{sensor}, Shape: ShapeGlucoseCheck, PerRow: true},
	{Name: "finger checks and sensor readings", Types: []domain.EntryType{finger, sensor}, Shape: ShapeGlucoseCheck, PerRow: true},
	{Name: "boluses", Types: []domain.EntryType{bolus}, Shape: ShapeCorrectionBolus, PerRow: true},
}

// typeSet is a bitmask of the entry types present in a group.
type typeSet uint8

const (
	setBolus typeSet = 1 << iota
	setFinger
	setSensor
	setCarbs
	setOther
)

func typeBit(t domain.EntryType) typeSet {
	switch t {
	case bolus:
		return setBolus
	case finger:
		return setFinger
	case sensor:
		return setSensor
	case carbohydrates:
		return setCarbs
	}
	return setOther
}

func setOf(types []domain.EntryType) typeSet {
	var s typeSet
	for _, t := range types {
		s |= typeBit(t)
	}
	return s
}

func groupSet(g domain.Group) typeSet {
	var s typeSet
	for _, e := range g {
		s |= typeBit(e.Type)
	}
	return s
}

// Matches reports whether the rule applies to g.
func (r Rule) Matches(g domain.Group) bool {
	if len(g) == 0 || groupSet(g) != setOf(r.Types) {
		return false
	}
	return r.Size == 0 || r.Size == len(g)
}

// Classification is the result of classifying one group.
type Classification struct {
	Rule       *Rule
	Treatments []treatment.Treatment
	Skipped    []*ParseError
	Warnings   []*AmbiguousSelectionError
}

// Classifier maps entry groups to treatments using an ordered rule table.
type Classifier struct {
	Builder treatment.Builder
	Rules   []Rule
}

// NewClassifier creates a classifier over the default Rules.
func NewClassifier(b treatment.Builder) Classifier {
	return Classifier{Builder: b, Rules: Rules}
}

// Match returns the first rule that applies to g.
func (c Classifier) Match(g domain.Group) (*Rule, bool) {
	for i := range c.Rules {
		if c.Rules[i].Matches(g) {
			return &c.Rules[i], true
		}
	}
	return nil, false
}

// Classify builds the treatments for one group. It returns an
// *UnrecognizedGroupError when no rule matches. Rows with unparseable
// values are reported in Skipped; for a per-row rule only that row is
// dropped, otherwise the group yields nothing.
func (c Classifier) Classify(g domain.Group) (Classification, error) {
	rule, ok := c.Match(g)
	if !ok {
		return Classification{}, &UnrecognizedGroupError{Group: g}
	}

	result := Classification{Rule: rule}
	if rule.PerRow {
		for _, e := range g {
			t, err := c.buildRow(rule.Shape, e)
			if err != nil {
				result.Skipped = append(result.Skipped, err)
				continue
			}
			result.Treatments = append(result.Treatments, t)
		}
		return result, nil
	}

	sel := selectRows(g, rule)
	result.Warnings = sel.warnings
	t, err := c.buildGroup(rule, sel)
	if err != nil {
		result.Skipped = append(result.Skipped, err)
		return result, nil
	}
	result.Treatments = []treatment.Treatment{t}
	return result, nil
}

func (c Classifier) buildRow(shape Shape, e domain.Entry) (treatment.Treatment, *ParseError) {
	switch shape {
	case ShapeCarbCorrection:
		carbs, err := ParseCarbs(e.Value)
		if err != nil {
			return treatment.Treatment{}, newParseError(e, e.Value, err)
		}
		return c.Builder.CarbCorrection(carbs, nil, e.Timestamp, e.ID), nil
	case ShapeCorrectionBolus:
		insulin, err := ParseBolus(e.Value)
		if err != nil {
			return treatment.Treatment{}, newParseError(e, e.Value, err)
		}
		return c.Builder.CorrectionBolus(insulin, nil, e.Timestamp, e.ID), nil
	default:
		r, err := parseReading(e)
		if err != nil {
			return treatment.Treatment{}, err
		}
		return c.Builder.BGCheck(*r, e.Timestamp, e.ID), nil
	}
}

func (c Classifier) buildGroup(rule *Rule, sel selection) (treatment.Treatment, *ParseError) {
	var (
		insulin float64
		carbs   int
		reading *treatment.Reading
		err     error
	)
	if sel.bolus != nil {
		if insulin, err = ParseBolus(sel.bolus.Value); err != nil {
			return treatment.Treatment{}, newParseError(*sel.bolus, sel.bolus.Value, err)
		}
	}
	if sel.carbs != nil {
		if carbs, err = ParseCarbs(sel.carbs.Value); err != nil {
			return treatment.Treatment{}, newParseError(*sel.carbs, sel.carbs.Value, err)
		}
	}
	if sel.glucose != nil {
		var perr *ParseError
		if reading, perr = parseReading(*sel.glucose); perr != nil {
			return treatment.Treatment{}, perr
		}
	}

	anchor := sel.anchor()
	switch rule.Shape {
	case ShapeMealBolus:
		return c.Builder.MealBolus(insulin, carbs, reading, anchor.Timestamp, anchor.ID), nil
	case ShapeCorrectionBolus:
		return c.Builder.CorrectionBolus(insulin, reading, anchor.Timestamp, anchor.ID), nil
	case ShapeCarbCorrection:
		return c.Builder.CarbCorrection(carbs, reading, anchor.Timestamp, anchor.ID), nil
	default:
		return c.Builder.BGCheck(*reading, anchor.Timestamp, anchor.ID), nil
	}
}

func parseReading(e domain.Entry) (*treatment.Reading, *ParseError) {
	glucoseType, _ := bloodsugar.GlucoseTypeFor(e.Type)
	value, err := ParseGlucose(e.Value)
	if err != nil {
		return nil, newParseError(e, e.Value, err)
	}
	return &treatment.Reading{Value: value, Type: glucoseType}, nil
}

// selection holds the rows a composite rule draws its values from.
type selection struct {
	bolus    *domain.Entry
	carbs    *domain.Entry
	glucose  *domain.Entry
	warnings []*AmbiguousSelectionError
}

// anchor supplies created_at and the source id: bolus, then carbs, then glucose.
func (s selection) anchor() domain.Entry {
	switch {
	case s.bolus != nil:
		return *s.bolus
	case s.carbs != nil:
		return *s.carbs
	default:
		return *s.glucose
	}
}

func selectRows(g domain.Group, rule *Rule) selection {
	var sel selection
	pick := func(t domain.EntryType) *domain.Entry {
		e, warn := first(g, t)
		if warn != nil {
			sel.warnings = append(sel.warnings, warn)
		}
		return e
	}

	ruleSet := setOf(rule.Types)
	if ruleSet&setBolus != 0 {
		sel.bolus = pick(bolus)
	}
	if ruleSet&setCarbs != 0 {
		sel.carbs = pick(carbohydrates)
	}
	for _, t := range rule.Glucose {
		if ruleSet&typeBit(t) == 0 {
			continue
		}
		if e := pick(t); e != nil {
			sel.glucose = e
			break
		}
	}
	return sel
}

// first returns the first entry of type t in group order, with a warning
// when more than one is present.
func first(g domain.Group, t domain.EntryType) (*domain.Entry, *AmbiguousSelectionError) {
	var chosen *domain.Entry
	var ignored []string
	for i := range g {
		if g[i].Type != t {
			continue
		}
		if chosen == nil {
			chosen = &g[i]
			continue
		}
		ignored = append(ignored, g[i].ID)
	}
	if len(ignored) == 0 {
		return chosen, nil
	}
	return chosen, &AmbiguousSelectionError{Type: t, ChosenID: chosen.ID, IgnoredIDs: ignored}
}
