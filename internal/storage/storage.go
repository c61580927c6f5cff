// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"expiry_tracker/internal/model"
)

// Lookup errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrAmbiguousID = errors.New("ambiguous id prefix")
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ResolveProductID(ctx context.Context, prefix string) (string, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, c *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreateLocation(ctx context.Context, l *model.Location) error
	ListLocations(ctx context.Context) ([]model.Location, error)
	DeleteLocation(ctx context.Context, id int64) error

	ListNotifiedKeys(ctx context.Context) ([]string, error)
	AddNotifiedKeys(ctx context.Context, keys []NotifiedKey) error
	PruneNotifiedKeys(ctx context.Context) (int64, error)
	ResetNotifiedKeys(ctx context.Context) error

	GetSentMessage(ctx context.Context, tag string) (SentMessage, error)
	SaveSentMessage(ctx context.Context, m SentMessage) error

	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s *model.Settings) error

	Close() error
}

// NotifiedKey is the persisted form of a fired reminder.
type NotifiedKey struct {
	ProductID string
	DaysUntil int
}

// String returns the dedup key.
func (k NotifiedKey) String() string {
	return model.NotifiedKey(k.ProductID, k.DaysUntil)
}

// SentMessage is the last chat message delivered for a notification tag.
type SentMessage struct {
	Tag       string
	ChatID    int64
	MessageID int
}
