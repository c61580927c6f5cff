// Package model defines the domain types used across the application.
package model

import (
	"strconv"
	"time"
)

// DateLayout is the storage and input format of calendar dates.
const DateLayout = "2006-01-02"

// Product is a tracked perishable or consumable item.
//
// ExpirationDate and OpenedDate hold raw YYYY-MM-DD strings as stored; they
// are parsed on every evaluation so a malformed value never blocks a listing.
type Product struct {
	ID                string
	Name              string
	CategoryID        *int64
	LocationID        *int64
	ExpirationDate    string
	HasExpirationDate bool
	UseShelfLife      bool
	ShelfLifeDays     *int
	OpenedDate        string
	NotifyTiming      *int
	CreatedAt         time.Time
}

// Status is the derived freshness state of a product. It is never persisted.
type Status string

// Supported statuses.
const (
	StatusSafe         Status = "safe"
	StatusExpiringSoon Status = "expiring-soon"
	StatusExpired      Status = "expired"
)

// Category groups products by kind (dairy, medicine, cosmetics...).
type Category struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Location is where a product is kept (fridge, pantry, bathroom...).
type Location struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Permission mirrors the notification platform's permission state.
type Permission string

// Supported permission states.
const (
	PermissionUnsupported Permission = "unsupported"
	PermissionDefault     Permission = "default"
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
)

// Settings holds the household-wide notification preferences.
type Settings struct {
	NotificationsEnabled bool
	// LeadTimes overrides the default {7, 3, 1, 0} thresholds when non-empty.
	LeadTimes    []int
	NotifyChatID int64
	Permission   Permission
}

// NotifiedKey identifies a product that already fired at a given
// days-until-expiration value.
func NotifiedKey(productID string, daysUntil int) string {
	return productID + "-" + strconv.Itoa(daysUntil)
}
