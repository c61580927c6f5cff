// Package notify decides which products newly cross a reminder threshold.
//
// ComputeDue is pure: it reads the previously notified keys and returns a new
// set. Persisting that set is what keeps a reminder from firing twice.
package notify

import (
	"cmp"
	"slices"
	"time"

	"expiry_tracker/internal/expiry"
	"expiry_tracker/internal/model"
)

// DefaultLeadTimes are the days-until values that trigger a reminder when
// neither the settings nor the product override them.
var DefaultLeadTimes = []int{7, 3, 1, 0}

// ExpiredBoundary is the days-until value of the "just expired" reminder.
// It applies on top of any lead-time set.
const ExpiredBoundary = -1

// Severity orders reminders from informational to terminal.
type Severity int

// Severity classes.
const (
	SeverityInformational Severity = iota
	SeverityElevated
	SeverityUrgent
	SeverityCritical
	SeverityTerminal
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityElevated:
		return "elevated"
	case SeverityUrgent:
		return "urgent"
	case SeverityCritical:
		return "critical"
	case SeverityTerminal:
		return "terminal"
	default:
		return "informational"
	}
}

// SeverityFor maps a days-until value to its severity class.
func SeverityFor(daysUntil int) Severity {
	switch {
	case daysUntil < 0:
		return SeverityTerminal
	case daysUntil == 0:
		return SeverityCritical
	case daysUntil == 1:
		return SeverityUrgent
	case daysUntil <= 3:
		return SeverityElevated
	default:
		return SeverityInformational
	}
}

// Due is a product that crossed a threshold and must be notified once.
type Due struct {
	ProductID string
	Name      string
	Effective time.Time
	DaysUntil int
	Severity  Severity
	Key       string
}

// Result is the outcome of one ComputeDue call.
type Result struct {
	Due []Due
	// Notified is the input set plus the keys of every Due entry.
	Notified KeySet
}

// KeySet is a set of notified keys.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add inserts key into the set.
func (s KeySet) Add(key string) {
	s[key] = struct{}{}
}

// Clone returns an independent copy of the set.
func (s KeySet) Clone() KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Keys returns the keys in sorted order.
func (s KeySet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Thresholds returns the days-until values at which p is due. The product's
// NotifyTiming replaces leadTimes, and an empty leadTimes means the defaults.
func Thresholds(p model.Product, leadTimes []int) []int {
	base := DefaultLeadTimes
	switch {
	case p.NotifyTiming != nil:
		base = []int{*p.NotifyTiming}
	case len(leadTimes) > 0:
		base = leadTimes
	}
	out := append(slices.Clone(base), ExpiredBoundary)
	slices.Sort(out)
	return slices.Compact(out)
}

// ComputeDue returns the products that reach one of their thresholds at now
// and whose key is not yet in notified. The input set is never modified.
func ComputeDue(products []model.Product, now time.Time, notified KeySet, leadTimes []int) Result {
	updated := notified.Clone()
	seen := make(map[string]struct{}, len(products))
	var due []Due

	for _, p := range products {
		// First record of an ID wins.
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}

		eff, ok := expiry.ResolveEffectiveDate(p)
		if !ok {
			continue
		}
		days := expiry.DaysUntil(eff, now)
		key := model.NotifiedKey(p.ID, days)
		if updated.Has(key) {
			continue
		}
		if !slices.Contains(Thresholds(p, leadTimes), days) {
			continue
		}

		updated.Add(key)
		due = append(due, Due{
			ProductID: p.ID,
			Name:      p.Name,
			Effective: eff,
			DaysUntil: days,
			Severity:  SeverityFor(days),
			Key:       key,
		})
	}

	slices.SortStableFunc(due, func(a, b Due) int {
		if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return Result{Due: due, Notified: updated}
}
