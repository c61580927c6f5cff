package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"expiry_tracker/internal/dispatch"
	"expiry_tracker/internal/model"
	"expiry_tracker/internal/notify"
	"expiry_tracker/internal/storage"
)

var errNoChat = errors.New("no chat registered for notifications")

// Supported implements dispatch.Platform.
func (b *Bot) Supported() bool {
	return b.api != nil
}

// Permission implements dispatch.Platform.
func (b *Bot) Permission(ctx context.Context) model.Permission {
	st, err := b.store.GetSettings(ctx)
	if err != nil {
		b.log.Error("get settings", "error", err)
		return model.PermissionDefault
	}
	return st.Permission
}

// RequestPermission implements dispatch.Platform. It sends an Allow/Block
// prompt to the registered chat; the answer arrives as a callback.
func (b *Bot) RequestPermission(ctx context.Context) (model.Permission, error) {
	st, err := b.store.GetSettings(ctx)
	if err != nil {
		return model.PermissionDefault, fmt.Errorf("get settings: %w", err)
	}
	if st.NotifyChatID == 0 {
		return st.Permission, errNoChat
	}

	msg := tgbotapi.NewMessage(st.NotifyChatID, "Allow expiry reminders in this chat?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Allow", cbPermAllow),
			tgbotapi.NewInlineKeyboardButtonData("Block", cbPermDeny),
		),
	)
	if _, err := b.send(msg); err != nil {
		return st.Permission, fmt.Errorf("send permission prompt: %w", err)
	}
	return st.Permission, nil
}

// Display implements dispatch.Platform. A reminder replaces the previous
// message sent with the same tag. The last message per tag is stored, so
// replacement also works across restarts.
func (b *Bot) Display(ctx context.Context, n notify.Message) error {
	st, err := b.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}
	if st.NotifyChatID == 0 {
		return errNoChat
	}

	prev, err := b.store.GetSentMessage(ctx, n.Tag)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.log.Warn("get previous notification", "tag", n.Tag, "error", err)
	}

	sent, err := b.send(tgbotapi.NewMessage(st.NotifyChatID, FormatNotification(n)))
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	cur := storage.SentMessage{Tag: n.Tag, ChatID: st.NotifyChatID, MessageID: sent.MessageID}
	if err := b.store.SaveSentMessage(ctx, cur); err != nil {
		b.log.Warn("record notification", "tag", n.Tag, "error", err)
	}

	if prev.MessageID != 0 && prev != cur {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(prev.ChatID, prev.MessageID)); err != nil {
			b.log.Debug("delete replaced notification", "tag", n.Tag, "message_id", prev.MessageID, "error", err)
		}
	}
	return nil
}

var _ dispatch.Platform = (*Bot)(nil)
