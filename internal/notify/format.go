package notify

import (
	"fmt"

	"expiry_tracker/internal/model"
)

// Message is the display request handed to a notification platform.
type Message struct {
	Title string
	Body  string
	// Tag identifies the product so a platform can replace an older
	// reminder for it.
	Tag string
}

// Tag returns the platform identity tag of a product's reminders.
func Tag(productID string) string {
	return "expiry-" + productID
}

// Message formats the reminder for d.
func (d Due) Message() Message {
	date := d.Effective.Format(model.DateLayout)

	var title, body string
	switch d.Severity {
	case SeverityTerminal:
		title = fmt.Sprintf("%s has expired", d.Name)
		body = fmt.Sprintf("It expired on %s. Check it before use or throw it away.", date)
	case SeverityCritical:
		title = fmt.Sprintf("%s expires today", d.Name)
		body = fmt.Sprintf("Use it today (%s).", date)
	case SeverityUrgent:
		title = fmt.Sprintf("%s expires tomorrow", d.Name)
		body = fmt.Sprintf("Expiration date: %s.", date)
	default:
		title = fmt.Sprintf("%s expires in %d days", d.Name, d.DaysUntil)
		body = fmt.Sprintf("Expiration date: %s.", date)
	}

	return Message{Title: title, Body: body, Tag: Tag(d.ProductID)}
}
