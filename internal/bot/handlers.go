package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"expiry_tracker/internal/expiry"
	"expiry_tracker/internal/model"
	"expiry_tracker/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Expiry Tracker!

Track what is in your fridge, pantry and medicine cabinet and get reminded before it expires.

Quick start:
1. /add Milk 2024-06-17 - track a product with a printed date
2. /add Sauce shelf:5 - track a product that keeps 5 days once opened
3. /notify on - enable reminders in this chat

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Products:
/add [-n days] <name> <date> - track a product
    date: YYYY-MM-DD, +days, shelf:days or never
/list [expired|soon|safe] - show products, most urgent first
/info <id> - product details
/open <id> [YYYY-MM-DD] - mark a shelf-life product as opened
/timing <id> <days|default> - remind N days before expiry
/remove <id> - delete a product

Reminders:
/notify on|off|status|reset - manage reminders
/leadtimes <d,d,...|default> - default reminder days
/check - check for due reminders now

IDs may be shortened to any unique prefix.`)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	p, err := ParseAddArgs(args, b.now())
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if err := b.store.CreateProduct(ctx, &p); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save product: %v", err))
		return
	}

	v := expiry.Evaluate(p, b.now())
	b.reply(chatID, fmt.Sprintf("Product added!\n%s %s: %s", ShortID(p.ID), p.Name, v.Label()))
	b.triggerCheck()
}

func (b *Bot) handleList(ctx context.Context, chatID int64, args string) {
	var filter model.Status
	switch args {
	case "":
	case "expired":
		filter = model.StatusExpired
	case "soon", "expiring", string(model.StatusExpiringSoon):
		filter = model.StatusExpiringSoon
	case "safe":
		filter = model.StatusSafe
	default:
		b.reply(chatID, "Usage: /list [expired|soon|safe]")
		return
	}

	products, err := b.store.ListProducts(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	now := b.now()
	if filter != "" {
		products = expiry.FilterByStatus(products, filter, now)
	}
	b.reply(chatID, FormatProductList(expiry.SortByUrgency(products, now)))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	prefix, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /info <id>")
		return
	}

	p, ok := b.lookupProduct(ctx, chatID, prefix)
	if !ok {
		return
	}

	var category, location string
	if p.CategoryID != nil {
		if cs, err := b.store.ListCategories(ctx); err == nil {
			for _, c := range cs {
				if c.ID == *p.CategoryID {
					category = c.Name
				}
			}
		}
	}
	if p.LocationID != nil {
		if ls, err := b.store.ListLocations(ctx); err == nil {
			for _, l := range ls {
				if l.ID == *p.LocationID {
					location = l.Name
				}
			}
		}
	}

	v := expiry.Evaluate(*p, b.now())
	msg := tgbotapi.NewMessage(chatID, FormatProductInfo(v, category, location))

	row := []tgbotapi.InlineKeyboardButton{}
	if s, ok := v.Mode.(expiry.ShelfLife); ok && s.Opened == nil {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Opened today", cmdOpen+":"+p.ID))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("Delete", "delete_confirm:"+p.ID))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)

	if _, err := b.send(msg); err != nil {
		b.log.Error("send product info", "error", err)
	}
}

func (b *Bot) handleOpen(ctx context.Context, chatID int64, args string) {
	prefix, date, err := ParseOpenArgs(args, b.now())
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	p, ok := b.lookupProduct(ctx, chatID, prefix)
	if !ok {
		return
	}
	if !p.UseShelfLife {
		b.reply(chatID, fmt.Sprintf("\"%s\" has no shelf life to start.", p.Name))
		return
	}

	p.OpenedDate = date
	if err := b.store.UpdateProduct(ctx, p); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	v := expiry.Evaluate(*p, b.now())
	b.reply(chatID, fmt.Sprintf("\"%s\" opened on %s: %s.", p.Name, date, v.Label()))
	b.triggerCheck()
}

func (b *Bot) handleTiming(ctx context.Context, chatID int64, args string) {
	prefix, timing, err := ParseTimingArgs(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	p, ok := b.lookupProduct(ctx, chatID, prefix)
	if !ok {
		return
	}

	p.NotifyTiming = timing
	if err := b.store.UpdateProduct(ctx, p); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if timing == nil {
		b.reply(chatID, fmt.Sprintf("\"%s\" now uses the default reminder days.", p.Name))
	} else {
		b.reply(chatID, fmt.Sprintf("\"%s\" will be reminded %s before it expires.", p.Name, pluralDays(*timing)))
	}
	b.triggerCheck()
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	prefix, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove <id>")
		return
	}

	p, ok := b.lookupProduct(ctx, chatID, prefix)
	if !ok {
		return
	}

	if err := b.store.DeleteProduct(ctx, p.ID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting product: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Product %s \"%s\" deleted.", ShortID(p.ID), p.Name))
}

func (b *Bot) handleNotify(ctx context.Context, chatID int64, args string) {
	st, err := b.store.GetSettings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	switch args {
	case "", "status":
		b.reply(chatID, FormatSettings(st, b.notifier.Permission(ctx)))
		return
	case "on":
		st.NotificationsEnabled = true
		st.NotifyChatID = chatID
	case "off":
		st.NotificationsEnabled = false
	case "reset":
		st.Permission = model.PermissionDefault
		if err := b.store.ResetNotifiedKeys(ctx); err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
	default:
		b.reply(chatID, "Usage: /notify on|off|status|reset")
		return
	}

	if err := b.store.SaveSettings(ctx, st); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	switch args {
	case "on":
		perm := b.notifier.RequestPermission(ctx)
		switch perm {
		case model.PermissionGranted:
			b.reply(chatID, "Notifications enabled.")
			b.triggerCheck()
		case model.PermissionDenied:
			b.reply(chatID, "Notifications enabled, but reminders are blocked. Use /notify reset to be asked again.")
		case model.PermissionUnsupported:
			b.reply(chatID, "Notifications enabled, but this platform cannot deliver them.")
		default:
			b.reply(chatID, "Notifications enabled. Please allow reminders to start receiving them.")
		}
	case "off":
		b.reply(chatID, "Notifications disabled.")
	case "reset":
		b.reply(chatID, "Reminder history and permission cleared. Use /notify on to be asked again.")
	}
}

func (b *Bot) handleLeadTimes(ctx context.Context, chatID int64, args string) {
	lead, err := ParseLeadTimes(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	st, err := b.store.GetSettings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	st.LeadTimes = lead
	if err := b.store.SaveSettings(ctx, st); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, FormatSettings(st, b.notifier.Permission(ctx)))
	b.triggerCheck()
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64) {
	st, err := b.store.GetSettings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !st.NotificationsEnabled {
		b.reply(chatID, "Notifications are off. Use /notify on first.")
		return
	}
	b.triggerCheck()
	b.reply(chatID, "Checking for due reminders...")
}

func (b *Bot) lookupProduct(ctx context.Context, chatID int64, prefix string) (*model.Product, bool) {
	id, err := b.store.ResolveProductID(ctx, prefix)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.reply(chatID, fmt.Sprintf("Product %s not found.", prefix))
		return nil, false
	case errors.Is(err, storage.ErrAmbiguousID):
		b.reply(chatID, fmt.Sprintf("ID %s matches several products, use more characters.", prefix))
		return nil, false
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return nil, false
	}

	p, err := b.store.GetProduct(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Product %s not found.", prefix))
		return nil, false
	}
	return p, true
}
