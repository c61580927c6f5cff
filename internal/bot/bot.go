// Package bot implements the Telegram front-end: product commands, the
// notification settings surface and the Telegram notification platform.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"expiry_tracker/internal/config"
	"expiry_tracker/internal/model"
	"expiry_tracker/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Notifier exposes the permission side of the dispatcher.
type Notifier interface {
	Permission(ctx context.Context) model.Permission
	RequestPermission(ctx context.Context) model.Permission
}

// Checker schedules an evaluation pass.
type Checker interface {
	Trigger()
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	cfg      *config.Config
	notifier Notifier
	checker  Checker
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:   api,
		store: store,
		cfg:   cfg,
		log:   log,
		now:   func() time.Time { return time.Now().In(loc) },
	}, nil
}

// Attach connects the bot to the dispatcher and the scheduler. It must be
// called before Run.
func (b *Bot) Attach(n Notifier, c Checker) {
	b.notifier = n
	b.checker = c
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	if _, err := b.send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) send(msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	msg.DisableWebPagePreview = true
	return b.api.Send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) triggerCheck() {
	if b.checker != nil {
		b.checker.Trigger()
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "add":
		b.handleAdd(ctx, chatID, args)
	case "list":
		b.handleList(ctx, chatID, args)
	case "info":
		b.handleInfo(ctx, chatID, args)
	case cmdOpen:
		b.handleOpen(ctx, chatID, args)
	case "timing":
		b.handleTiming(ctx, chatID, args)
	case "remove":
		b.handleRemove(ctx, chatID, args)
	case "notify":
		b.handleNotify(ctx, chatID, args)
	case "leadtimes":
		b.handleLeadTimes(ctx, chatID, args)
	case "check":
		b.handleCheck(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
