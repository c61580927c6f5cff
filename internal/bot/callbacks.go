package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"expiry_tracker/internal/model"
)

const (
	cmdOpen = "open"

	cbPermAllow = "perm:allow"
	cbPermDeny  = "perm:deny"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Request(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, arg, ok := strings.Cut(data, ":")
	if !ok || arg == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case "perm":
		b.handlePermissionAnswer(ctx, chatID, arg == "allow")
	case cmdOpen:
		b.handleOpen(ctx, chatID, arg)
	case "delete_confirm":
		p, err := b.store.GetProduct(ctx, arg)
		if err != nil {
			b.reply(chatID, "Product not found.")
			return
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Delete \"%s\"? This cannot be undone.", p.Name))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Yes, delete", "delete:"+p.ID),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
			),
		)
		if _, err := b.send(msg); err != nil {
			b.log.Error("send delete confirmation", "error", err)
		}
	case "delete":
		b.handleRemove(ctx, chatID, arg)
	}
}

func (b *Bot) handlePermissionAnswer(ctx context.Context, chatID int64, allow bool) {
	st, err := b.store.GetSettings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if st.Permission != model.PermissionDefault {
		b.reply(chatID, fmt.Sprintf("Notification permission is already %s.", st.Permission))
		return
	}

	st.Permission = model.PermissionDenied
	if allow {
		st.Permission = model.PermissionGranted
		st.NotifyChatID = chatID
	}
	if err := b.store.SaveSettings(ctx, st); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if allow {
		b.reply(chatID, "Reminders allowed. You will be notified before products expire.")
		b.triggerCheck()
		return
	}
	b.reply(chatID, "Reminders blocked. Use /notify reset to be asked again.")
}
