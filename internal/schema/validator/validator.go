// Package validator checks staged rows against a fixed column rule table.
// It never touches storage: callers persist the returned errors.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/identity"

	"github.com/google/uuid"
)

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
}

// Validator applies a rule table to batches of rows.
type Validator struct {
	rules []Rule
	now   func() time.Time
	ids   *identity.Generator
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for the future date check.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithIdentity overrides the generator used for error record ids.
func WithIdentity(ids *identity.Generator) Option {
	return func(v *Validator) {
		if ids != nil {
			v.ids = ids
		}
	}
}

// WithRules replaces the default sales rule table.
func WithRules(rules []Rule) Option {
	return func(v *Validator) {
		if len(rules) > 0 {
			v.rules = rules
		}
	}
}

// New creates a validator for SalesRules.
func New(opts ...Option) *Validator {
	v := &Validator{
		rules: SalesRules,
		now:   time.Now,
		ids:   identity.NewGenerator(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Result is the outcome of validating a batch.
type Result struct {
	// InvalidRowIDs holds every row with at least one violation, in input order.
	InvalidRowIDs []uuid.UUID
	Errors        []domain.ValidationError

	invalid map[uuid.UUID]struct{}
}

// IsInvalid reports whether the row had at least one violation.
func (r Result) IsInvalid(id uuid.UUID) bool {
	_, ok := r.invalid[id]
	return ok
}

// violation is a rule failure for one column, before it is bound to a row.
type violation struct {
	note   string
	detail string
}

// Validate checks every row against the rule table. Each row must carry its
// id and hash under the "id" and "hash" columns; errors reference rows by
// those values and columns by name.
func (v *Validator) Validate(rows []map[string]any) Result {
	result := Result{
		InvalidRowIDs: []uuid.UUID{},
		Errors:        []domain.ValidationError{},
		invalid:       make(map[uuid.UUID]struct{}),
	}

	today := truncateDate(v.now().UTC())
	seen := make(map[string]map[string]struct{})
	for _, rule := range v.rules {
		if rule.Unique {
			seen[rule.Column] = make(map[string]struct{})
		}
	}

	for _, row := range rows {
		rowID := rowIdentifier(row[domain.ColumnID])
		hash, _ := identity.RawText(row[domain.ColumnHash])
		label := rowLabel(rowID, hash)

		for _, rule := range v.rules {
			value := row[rule.Column]
			failure := v.check(rule, value, today, seen[rule.Column])
			if failure == nil {
				continue
			}

			cell, _ := identity.RawText(value)
			result.Errors = append(result.Errors, domain.ValidationError{
				ID:        v.ids.NewID(),
				RowID:     rowID,
				Hash:      hash,
				FieldName: rule.Column,
				CellValue: cell,
				Message:   fmt.Sprintf("row %q field %q: %s", label, rule.Column, failure.detail),
				Note:      failure.note,
				CreatedAt: v.now().UTC(),
			})
			if _, already := result.invalid[rowID]; !already {
				result.invalid[rowID] = struct{}{}
				result.InvalidRowIDs = append(result.InvalidRowIDs, rowID)
			}
		}
	}

	return result
}

func (v *Validator) check(rule Rule, value any, today time.Time, seen map[string]struct{}) *violation {
	if isMissing(value) {
		if rule.Required {
			return &violation{note: domain.NoteMissingRequired, detail: "value is required but missing"}
		}
		return nil
	}

	raw, _ := identity.RawText(value)

	switch rule.Kind {
	case KindInteger, KindNumber:
		number, ok := toNumber(value)
		if !ok || (rule.Kind == KindInteger && math.Trunc(number) != number) {
			return &violation{
				note:   domain.NoteInvalidType,
				detail: fmt.Sprintf("value %q is not a valid %s", raw, rule.Kind),
			}
		}
		if rule.Minimum != nil && number < *rule.Minimum {
			return &violation{
				note:   domain.NoteOutOfRange,
				detail: fmt.Sprintf("value %s is below the minimum of %s", raw, formatNumber(*rule.Minimum)),
			}
		}
		if rule.Positive && number <= 0 {
			return &violation{
				note:   domain.NoteOutOfRange,
				detail: fmt.Sprintf("value %s must be greater than 0", raw),
			}
		}
	case KindDate:
		date, ok := toDate(value)
		if !ok {
			return &violation{
				note:   domain.NoteInvalidType,
				detail: fmt.Sprintf("value %q is not a valid date", raw),
			}
		}
		if rule.NotFuture && truncateDate(date).After(today) {
			return &violation{
				note:   domain.NoteFutureDate,
				detail: fmt.Sprintf("date %s is after the current date %s", date.Format(time.DateOnly), today.Format(time.DateOnly)),
			}
		}
	case KindText:
		if _, ok := value.(string); !ok {
			return &violation{
				note:   domain.NoteInvalidType,
				detail: fmt.Sprintf("value %q is not text", raw),
			}
		}
	}

	if seen != nil {
		if _, dup := seen[raw]; dup {
			return &violation{
				note:   domain.NoteDuplicate,
				detail: fmt.Sprintf("value %q duplicates an earlier row in the batch", raw),
			}
		}
		seen[raw] = struct{}{}
	}

	return nil
}

func isMissing(value any) bool {
	text, ok := identity.RawText(value)
	if !ok {
		return true
	}
	if _, isString := value.(string); isString {
		return strings.TrimSpace(text) == ""
	}
	return false
}

func rowIdentifier(value any) uuid.UUID {
	switch v := value.(type) {
	case uuid.UUID:
		return v
	case string:
		if id, err := uuid.Parse(strings.TrimSpace(v)); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func rowLabel(id uuid.UUID, hash string) string {
	if id != uuid.Nil {
		return id.String()
	}
	if hash != "" {
		return "hash:" + hash
	}
	return "unidentified"
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

func toDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		raw := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
