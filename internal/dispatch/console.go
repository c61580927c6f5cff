package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"expiry_tracker/internal/model"
	"expiry_tracker/internal/notify"
)

// Console is a Platform that prints notifications to a writer.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console platform writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Supported implements Platform.
func (c *Console) Supported() bool { return true }

// Permission implements Platform. A terminal needs no permission.
func (c *Console) Permission(context.Context) model.Permission { return model.PermissionGranted }

// RequestPermission implements Platform.
func (c *Console) RequestPermission(context.Context) (model.Permission, error) {
	return model.PermissionGranted, nil
}

// Display implements Platform.
func (c *Console) Display(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "[%s] %s\n  %s\n", msg.Tag, msg.Title, msg.Body)
	return err
}

var _ Platform = (*Console)(nil)
