package logbook

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit suffixes as the portal renders them.
const (
	BolusUnit   = "U"
	GlucoseUnit = "mmol/L"
	CarbsUnit   = "g carb"
)

// maxCarbs bounds ParseCarbs so the int conversion cannot wrap.
var maxCarbs = decimal.NewFromInt(math.MaxInt32)

// ParseBolus parses an insulin amount such as "6.2U".
func ParseBolus(value string) (float64, error) {
	d, err := parseQuantity(value, BolusUnit)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseGlucose parses a glucose reading such as "7.1mmol/L".
func ParseGlucose(value string) (float64, error) {
	d, err := parseQuantity(value, GlucoseUnit)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseCarbs parses a whole number of grams such as "40g carb".
func ParseCarbs(value string) (int, error) {
	d, err := parseQuantity(value, CarbsUnit)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: carbs %s is not a whole number", ErrMalformedValue, d)
	}
	if d.GreaterThan(maxCarbs) {
		return 0, fmt.Errorf("%w: carbs %s out of range", ErrMalformedValue, d)
	}
	return int(d.IntPart()), nil
}

// parseQuantity requires value to be a non-negative number followed by unit.
// Whitespace around the number is ignored and a decimal comma is accepted.
func parseQuantity(value, unit string) (decimal.Decimal, error) {
	number, ok := strings.CutSuffix(strings.TrimSpace(value), unit)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: missing %q suffix", ErrMalformedValue, unit)
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return decimal.Zero, fmt.Errorf("%w: no number before %q", ErrMalformedValue, unit)
	}
	if strings.ContainsAny(number, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q is not a plain decimal", ErrMalformedValue, number)
	}

	d, err := decimal.NewFromString(strings.Replace(number, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrMalformedValue, number)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative quantity %s", ErrMalformedValue, d)
	}
	return d, nil
}
