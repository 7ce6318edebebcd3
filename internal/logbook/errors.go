package logbook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwulff/mylife-sync/internal/domain"
)

// ErrMalformedValue is wrapped by every value or timestamp parse failure.
var ErrMalformedValue = errors.New("malformed value")

// ParseError is returned when a row's value or date/time cannot be parsed.
// It drops that row's contribution only.
type ParseError struct {
	EntryID string
	Type    domain.EntryType
	Value   string
	Err     error
}

func newParseError(e domain.Entry, value string, err error) *ParseError {
	return &ParseError{EntryID: e.ID, Type: e.Type, Value: value, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("entry %s (%s): cannot parse %q: %v", e.EntryID, e.Type, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnrecognizedGroupError reports a group whose row types match no rule.
// The group is excluded from the output.
type UnrecognizedGroupError struct {
	Group domain.Group
}

func (e *UnrecognizedGroupError) Error() string {
	types := e.Group.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return fmt.Sprintf("unrecognized group of %d entries at %s: {%s}",
		len(e.Group), e.Group.Latest().UTC().Format("2006-01-02 15:04 UTC"), strings.Join(names, ", "))
}

// AmbiguousSelectionError is a warning: a rule needed one row of Type but
// the group held several. The first in group order was used.
type AmbiguousSelectionError struct {
	Type       domain.EntryType
	ChosenID   string
	IgnoredIDs []string
}

func (e *AmbiguousSelectionError) Error() string {
	return fmt.Sprintf("%d %q entries in group, used %s and ignored %s",
		len(e.IgnoredIDs)+1, e.Type, e.ChosenID, strings.Join(e.IgnoredIDs, ", "))
}
