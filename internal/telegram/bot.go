package telegram

import (
	"context"
	"errors"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"counselor-assistant/internal/analytics"
	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/dataset"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/storage"
)

type Authorizer interface {
	Login(username, password string) (session.Identity, error)
	Authorize(ctx context.Context, p session.Permission) (session.Identity, error)
}

type AccountCreator interface {
	Create(username, password string, isAdmin bool) (bool, error)
}

type InteractionLog interface {
	ListForUser(ctx context.Context, user string) []storage.Record
	AttachFeedback(ctx context.Context, timestamp string, feedback storage.Rating) error
	ComputeStats(ctx context.Context) (analytics.Stats, error)
	Owns(ctx context.Context, user, timestamp string) bool
}

type Suggester interface {
	Submit(ctx context.Context, user, challenge string, rows []dataset.Row) ([]string, storage.Record, error)
}

// Deps are the services the bot front-end talks to.
type Deps struct {
	Gate         Authorizer
	Sessions     *session.Registry
	Accounts     AccountCreator
	History      InteractionLog
	Suggest      Suggester
	Predictor    classifier.Predictor
	ReportChatID int64
}

type Bot struct {
	s   sender
	api *tgbotapi.BotAPI
	Deps
}

func New(botToken string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return newWithSender(botAPISender{api: api}, deps, api), nil
}

func newWithSender(s sender, deps Deps, api *tgbotapi.BotAPI) *Bot {
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}
	return &Bot{s: s, api: api, Deps: deps}
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	logger.Log.Infow("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleIncomingMessage(ctx, update.Message)
		return
	}
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// SendDailyReport posts the feedback statistics to the configured report chat.
func (b *Bot) SendDailyReport(ctx context.Context) error {
	if b.ReportChatID == 0 {
		return errors.New("report chat is not configured")
	}
	stats, err := b.History.ComputeStats(ctx)
	if err != nil {
		return err
	}
	b.sendMessage(b.ReportChatID, "<b>Daily report</b>\n\n"+html.EscapeString(stats.Summary()))
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.s.Send(msg); err != nil {
		logger.Log.Errorw("failed to send message", "chat_id", chatID, "error", err)
	}
}
