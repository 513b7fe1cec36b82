package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"

	"github.com/LexiPalCo/word-service/internal/core/localization"
	"github.com/LexiPalCo/word-service/internal/core/onboarding"
	"github.com/LexiPalCo/word-service/internal/core/users"
	"github.com/LexiPalCo/word-service/pkg/telemetry"
)

var tracer = otel.Tracer("telegram-service")

// BotService bridges Telegram updates and the onboarding machine. It
// owns the long-polling loop and all message delivery; the machine never
// touches Telegram types.
type BotService struct {
	bot      *tgbotapi.BotAPI
	machine  *onboarding.Machine
	users    *users.Service
	resolver *localization.Resolver
	logger   *slog.Logger
}

func NewBotService(
	token string,
	debug bool,
	machine *onboarding.Machine,
	userService *users.Service,
	resolver *localization.Resolver,
	logger *slog.Logger,
) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = debug

	logger.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &BotService{
		bot:      bot,
		machine:  machine,
		users:    userService,
		resolver: resolver,
		logger:   logger.With("service", "telegram"),
	}, nil
}

// Start runs the long-polling loop until ctx is cancelled. Each update
// is handled in its own goroutine; per-user ordering is enforced inside
// the machine.
func (s *BotService) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := s.bot.GetUpdatesChan(updateConfig)
	s.logger.Info("Telegram update loop started")

	for {
		select {
		case <-ctx.Done():
			s.bot.StopReceivingUpdates()
			s.logger.Info("Telegram update loop stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go s.handleUpdate(ctx, update)
		}
	}
}

func (s *BotService) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, span := tracer.Start(ctx, "telegram.handleUpdate")
	defer span.End()

	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	}
}

func (s *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	countMetric(ctx, telemetry.TelegramMessagesTotal, attribute.String("type", "message"))

	ev := onboarding.Event{
		UserID:      msg.From.ID,
		Kind:        onboarding.EventText,
		Payload:     msg.Text,
		DisplayName: msg.From.FirstName,
		LocaleHint:  msg.From.LanguageCode,
	}
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			ev.Kind = onboarding.EventStart
			ev.Payload = ""
		case "restart":
			ev.Kind = onboarding.EventButton
			ev.Payload = "restart"
		}
	}

	// registered users greet differently; onboarding only runs for
	// accounts without a stored profile
	if ev.Kind == onboarding.EventStart {
		user, err := s.users.GetUserByTelegramID(ctx, msg.From.ID)
		if err != nil {
			s.logger.Error("User lookup failed", "telegram_id", msg.From.ID, "error", err)
		} else if user != nil {
			s.sendText(ctx, user.ID.String(), msg.Chat.ID, "messages.registration.complete",
				user.LocaleCode, map[string]any{"name": user.Username})
			return
		}
	}

	s.dispatch(ctx, ev, msg.Chat.ID, 0)
}

func (s *BotService) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	countMetric(ctx, telemetry.TelegramMessagesTotal, attribute.String("type", "callback"))

	// acknowledge immediately so the client stops its spinner
	if _, err := s.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		s.logger.Debug("Callback ack failed", "error", err)
	}

	if cb.Message == nil || cb.From == nil {
		return
	}

	ev := onboarding.Event{
		UserID:      cb.From.ID,
		Kind:        onboarding.EventButton,
		Payload:     cb.Data,
		DisplayName: cb.From.FirstName,
		LocaleHint:  cb.From.LanguageCode,
	}

	s.dispatch(ctx, ev, cb.Message.Chat.ID, cb.Message.MessageID)
}

// dispatch runs the machine and delivers its renders. sourceMessageID is
// the message that carried the tapped keyboard, used for in-place
// keyboard updates.
func (s *BotService) dispatch(ctx context.Context, ev onboarding.Event, chatID int64, sourceMessageID int) {
	renders, err := s.machine.Handle(ctx, ev)
	if err != nil {
		s.logger.Error("Onboarding event failed", "user_id", ev.UserID, "error", err)
		countMetric(ctx, telemetry.TelegramErrorsTotal, attribute.String("type", "handler"))
	}

	for _, render := range renders {
		s.deliver(ctx, render, chatID, sourceMessageID)
	}
}

func (s *BotService) deliver(ctx context.Context, render onboarding.Render, chatID int64, sourceMessageID int) {
	if render.KeyboardOnly && sourceMessageID != 0 {
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, sourceMessageID, toInlineKeyboard(render.Layout))
		if _, err := s.bot.Request(edit); err != nil {
			s.logger.Error("Keyboard update failed", "chat_id", chatID, "error", err)
			countMetric(ctx, telemetry.TelegramErrorsTotal, attribute.String("type", "edit"))
		}
		return
	}

	msg := tgbotapi.NewMessage(chatID, render.Text)
	if !render.Layout.Empty() {
		msg.ReplyMarkup = toInlineKeyboard(render.Layout)
	}

	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Error("Message send failed", "chat_id", chatID, "error", err)
		countMetric(ctx, telemetry.TelegramErrorsTotal, attribute.String("type", "send"))
	}
}

func (s *BotService) sendText(ctx context.Context, userID string, chatID int64, key, locale string, params map[string]any) {
	text, err := s.resolver.Text(key, locale, params)
	if err != nil {
		s.logger.Error("Text resolution failed", "user_id", userID, "key", key, "error", err)
		text, _ = s.resolver.Text("messages.common.error_generic", locale, nil)
	}

	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.logger.Error("Message send failed", "chat_id", chatID, "error", err)
		countMetric(ctx, telemetry.TelegramErrorsTotal, attribute.String("type", "send"))
	}
}

func toInlineKeyboard(layout localization.Layout) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(layout))
	for _, row := range layout {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Action))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func countMetric(ctx context.Context, counter api.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, api.WithAttributes(attrs...))
}
