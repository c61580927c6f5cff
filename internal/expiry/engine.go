// Package expiry resolves effective expiration dates and classifies product freshness.
package expiry

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"expiry_tracker/internal/model"
)

// SoonWindow is the number of days (inclusive) before the effective date
// during which a product counts as expiring soon.
const SoonWindow = 2

// Mode is the expiration mode that applies to a product at evaluation time.
// Exactly one of NoExpiration, FixedDate, ShelfLife or Unresolved is returned
// by ModeOf.
type Mode interface {
	// Effective returns the effective expiration date, if any.
	Effective() (time.Time, bool)
}

// NoExpiration is a product that never expires.
type NoExpiration struct{}

// Effective implements Mode.
func (NoExpiration) Effective() (time.Time, bool) { return time.Time{}, false }

// FixedDate is a product with a stored expiration date.
type FixedDate struct {
	Date time.Time
}

// Effective implements Mode.
func (m FixedDate) Effective() (time.Time, bool) { return m.Date, true }

// ShelfLife is a product that expires a number of days after opening.
// Opened is nil while the product is still sealed.
type ShelfLife struct {
	Opened *time.Time
	Days   int
}

// Effective implements Mode.
func (m ShelfLife) Effective() (time.Time, bool) {
	if m.Opened == nil {
		return time.Time{}, false
	}
	return m.Opened.AddDate(0, 0, m.Days), true
}

// Unresolved is a product whose stored date cannot be parsed.
type Unresolved struct {
	Raw string
}

// Effective implements Mode.
func (Unresolved) Effective() (time.Time, bool) { return time.Time{}, false }

// ModeOf picks the expiration mode of p. Shelf-life mode takes precedence
// over a stored fixed date once the product is opened.
func ModeOf(p model.Product) Mode {
	if !p.HasExpirationDate {
		return NoExpiration{}
	}

	if p.UseShelfLife {
		days := 0
		if p.ShelfLifeDays != nil {
			days = *p.ShelfLifeDays
		}
		if strings.TrimSpace(p.OpenedDate) == "" {
			return ShelfLife{Days: days}
		}
		if opened, ok := ParseDate(p.OpenedDate); ok && p.ShelfLifeDays != nil && days >= 0 {
			return ShelfLife{Opened: &opened, Days: days}
		}
	}

	d, ok := ParseDate(p.ExpirationDate)
	if !ok {
		return Unresolved{Raw: p.ExpirationDate}
	}
	return FixedDate{Date: d}
}

// ParseDate parses a stored date. Both YYYY-MM-DD and RFC 3339 timestamps
// are accepted; the time of day is dropped and the calendar date kept.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return midnight(t), true
	}
	return time.Time{}, false
}

// ResolveEffectiveDate returns the date a product's countdown runs to.
// The second result is false for products that never expire, are not yet
// opened, or carry a malformed date.
func ResolveEffectiveDate(p model.Product) (time.Time, bool) {
	return ModeOf(p).Effective()
}

// DaysUntil returns the number of calendar days from now to effective.
// Both instants are reduced to their calendar day first, so the result only
// changes at midnight of now's location.
func DaysUntil(effective, now time.Time) int {
	return int(midnight(effective).Sub(midnight(now)) / (24 * time.Hour))
}

// ClassifyStatus maps an effective date to a status. A zero effective date
// means "no countdown" and is always safe.
func ClassifyStatus(effective, now time.Time) model.Status {
	if effective.IsZero() {
		return model.StatusSafe
	}
	days := DaysUntil(effective, now)
	switch {
	case days < 0:
		return model.StatusExpired
	case days <= SoonWindow:
		return model.StatusExpiringSoon
	default:
		return model.StatusSafe
	}
}

// StatusOf returns the current status of p.
func StatusOf(p model.Product, now time.Time) model.Status {
	return Evaluate(p, now).Status
}

// View is the evaluated state of one product at one instant.
type View struct {
	Product   model.Product
	Mode      Mode
	Effective time.Time
	HasDate   bool
	DaysUntil int
	Status    model.Status
}

// Evaluate computes the full view of p at now.
func Evaluate(p model.Product, now time.Time) View {
	mode := ModeOf(p)
	eff, ok := mode.Effective()
	v := View{
		Product: p,
		Mode:    mode,
		HasDate: ok,
		Status:  model.StatusSafe,
	}
	if ok {
		v.Effective = eff
		v.DaysUntil = DaysUntil(eff, now)
		v.Status = ClassifyStatus(eff, now)
	}
	return v
}

// Label returns a short human description of the countdown.
func (v View) Label() string {
	switch m := v.Mode.(type) {
	case NoExpiration:
		return "no expiration"
	case Unresolved:
		return fmt.Sprintf("invalid date %q", m.Raw)
	case ShelfLife:
		if m.Opened == nil {
			return fmt.Sprintf("not opened (%d days after opening)", m.Days)
		}
	}

	switch d := v.DaysUntil; {
	case d < -1:
		return fmt.Sprintf("expired %d days ago", -d)
	case d == -1:
		return "expired yesterday"
	case d == 0:
		return "expires today"
	case d == 1:
		return "expires tomorrow"
	default:
		return fmt.Sprintf("expires in %d days", d)
	}
}

// FilterByStatus returns the products whose current status equals status.
func FilterByStatus(products []model.Product, status model.Status, now time.Time) []model.Product {
	var out []model.Product
	for _, p := range products {
		if StatusOf(p, now) == status {
			out = append(out, p)
		}
	}
	return out
}

// SortByUrgency returns views of products ordered by effective date, soonest
// first. Products without a countdown go last, ordered by name.
func SortByUrgency(products []model.Product, now time.Time) []View {
	views := make([]View, 0, len(products))
	for _, p := range products {
		views = append(views, Evaluate(p, now))
	}
	slices.SortStableFunc(views, func(a, b View) int {
		if a.HasDate != b.HasDate {
			if a.HasDate {
				return -1
			}
			return 1
		}
		if a.HasDate {
			if c := a.Effective.Compare(b.Effective); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Product.Name, b.Product.Name)
	})
	return views
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
