package bot

import (
	"fmt"
	"strconv"
	"strings"

	"expiry_tracker/internal/expiry"
	"expiry_tracker/internal/model"
	"expiry_tracker/internal/notify"
)

const shortIDLen = 8

// FormatNotification formats a reminder as a Telegram message.
func FormatNotification(m notify.Message) string {
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n\n" + m.Body
}

// FormatProductList formats evaluated products for display.
func FormatProductList(views []expiry.View) string {
	if len(views) == 0 {
		return "No products found. Use /add to track one."
	}
	var b strings.Builder
	b.WriteString("Your products:\n")
	for _, v := range views {
		fmt.Fprintf(&b, "\n%s %s [%s]\n   %s\n",
			ShortID(v.Product.ID), v.Product.Name, statusMarker(v.Status), v.Label())
	}
	return b.String()
}

// FormatProductInfo formats detailed information about a single product.
func FormatProductInfo(v expiry.View, category, location string) string {
	p := v.Product
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", p.Name, statusMarker(v.Status))
	fmt.Fprintf(&b, "ID: %s\n", p.ID)
	fmt.Fprintf(&b, "Status: %s\n", v.Label())

	switch m := v.Mode.(type) {
	case expiry.FixedDate:
		fmt.Fprintf(&b, "Expires: %s\n", m.Date.Format(model.DateLayout))
	case expiry.ShelfLife:
		fmt.Fprintf(&b, "Shelf life: %d days after opening\n", m.Days)
		if m.Opened != nil {
			fmt.Fprintf(&b, "Opened: %s\n", m.Opened.Format(model.DateLayout))
			fmt.Fprintf(&b, "Use by: %s\n", v.Effective.Format(model.DateLayout))
		}
	}

	if p.NotifyTiming != nil {
		fmt.Fprintf(&b, "Reminder: %s before\n", pluralDays(*p.NotifyTiming))
	} else {
		b.WriteString("Reminder: default lead times\n")
	}
	if category != "" {
		fmt.Fprintf(&b, "Category: %s\n", category)
	}
	if location != "" {
		fmt.Fprintf(&b, "Location: %s\n", location)
	}
	fmt.Fprintf(&b, "Added: %s", p.CreatedAt.Format("2006-01-02 15:04"))
	return b.String()
}

// FormatSettings formats the notification settings surface.
func FormatSettings(st *model.Settings, perm model.Permission) string {
	var b strings.Builder
	enabled := "off"
	if st.NotificationsEnabled {
		enabled = "on"
	}
	fmt.Fprintf(&b, "Notifications: %s\n", enabled)
	fmt.Fprintf(&b, "Permission: %s\n", perm)

	lead := notify.DefaultLeadTimes
	suffix := " (default)"
	if len(st.LeadTimes) > 0 {
		lead = st.LeadTimes
		suffix = ""
	}
	fmt.Fprintf(&b, "Lead times: %s days%s", joinInts(lead), suffix)
	return b.String()
}

// ShortID returns the display prefix of a product ID.
func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func statusMarker(s model.Status) string {
	switch s {
	case model.StatusExpired:
		return "EXPIRED"
	case model.StatusExpiringSoon:
		return "soon"
	default:
		return "ok"
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}

func joinInts(vs []int) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ", ")
}
