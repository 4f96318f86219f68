package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/history"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/storage"
	"counselor-assistant/internal/suggest"
)

const (
	ratePrefix   = "rate|"
	historyLimit = 5
)

const helpText = `<b>Counselor assistant</b>

/login &lt;user&gt; &lt;password&gt; - sign in
/logout - sign out
/suggest &lt;challenge&gt; - get suggestions (plain text works too)
/history - your recent interactions
/stats - feedback statistics
/predict &lt;age&gt; &lt;weeks&gt; &lt;Mild|Moderate|Severe&gt; - depression risk
/adduser &lt;user&gt; &lt;password&gt; [admin] - create an account (admins)`

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	ctx = b.Sessions.Context(ctx, msg.Chat.ID)

	if !msg.IsCommand() {
		if strings.TrimSpace(msg.Text) == "" {
			return
		}
		b.handleSuggest(ctx, msg, msg.Text)
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.sendMessage(msg.Chat.ID, helpText)
	case "login":
		b.handleLogin(msg)
	case "logout":
		b.Sessions.Logout(msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, "You have been logged out.")
	case "suggest":
		b.handleSuggest(ctx, msg, msg.CommandArguments())
	case "history":
		b.handleHistory(ctx, msg)
	case "stats":
		b.handleStats(ctx, msg)
	case "predict":
		b.handlePredict(ctx, msg)
	case "adduser":
		b.handleAddUser(ctx, msg)
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command. Send /help for the list.")
	}
}

func (b *Bot) handleLogin(msg *tgbotapi.Message) {
	// the password should not stay in the chat
	if _, err := b.s.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		logger.Log.Debugw("could not delete login message", "chat_id", msg.Chat.ID, "error", err)
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.sendMessage(msg.Chat.ID, "Usage: /login &lt;user&gt; &lt;password&gt;")
		return
	}
	id, err := b.Gate.Login(args[0], args[1])
	if err != nil {
		logger.Log.Infow("telegram login rejected", "chat_id", msg.Chat.ID, "username", args[0])
		b.sendMessage(msg.Chat.ID, "Invalid username or password")
		return
	}
	b.Sessions.Login(msg.Chat.ID, id)
	logger.Log.Infow("telegram login", "chat_id", msg.Chat.ID, "username", id.Username, "admin", id.IsAdmin)
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Logged in as <b>%s</b>", html.EscapeString(id.Username)))
}

// authorize replies with a hint and returns false when the chat may not use p.
func (b *Bot) authorize(ctx context.Context, chatID int64, p session.Permission) (session.Identity, bool) {
	id, err := b.Gate.Authorize(ctx, p)
	switch {
	case errors.Is(err, session.ErrUnauthenticated):
		b.sendMessage(chatID, "Please /login first.")
		return id, false
	case errors.Is(err, session.ErrForbidden):
		b.sendMessage(chatID, "This command is available to admins only.")
		return id, false
	case err != nil:
		b.sendMessage(chatID, "Access denied.")
		return id, false
	}
	return id, true
}

func (b *Bot) handleSuggest(ctx context.Context, msg *tgbotapi.Message, challenge string) {
	id, ok := b.authorize(ctx, msg.Chat.ID, session.RequestSuggestions)
	if !ok {
		return
	}
	suggestions, rec, err := b.Suggest.Submit(ctx, id.Username, challenge, nil)
	if errors.Is(err, suggest.ErrEmptyChallenge) {
		b.sendMessage(msg.Chat.ID, "Please describe the challenge, e.g. /suggest client reports trouble sleeping")
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>Suggestions</b>\n\n")
	for i, s := range suggestions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, html.EscapeString(s))
	}
	if err != nil {
		logger.Log.Errorw("failed to save interaction", "user", id.Username, "error", err)
		sb.WriteString("\n<i>The suggestions could not be saved to your history.</i>")
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, sb.String())
	out.ParseMode = tgbotapi.ModeHTML
	if err == nil && rec.Timestamp != "" && !suggest.IsDiagnostic(suggestions) {
		out.ReplyMarkup = ratingKeyboard(rec.Timestamp)
	}
	if _, err := b.s.Send(out); err != nil {
		logger.Log.Errorw("failed to send suggestions", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := b.authorize(ctx, msg.Chat.ID, session.ViewHistory)
	if !ok {
		return
	}
	records := b.History.ListForUser(ctx, id.Username)
	if len(records) == 0 {
		b.sendMessage(msg.Chat.ID, "No interaction history found.")
		return
	}
	if len(records) > historyLimit {
		records = records[len(records)-historyLimit:]
	}
	for _, rec := range records {
		out := tgbotapi.NewMessage(msg.Chat.ID, formatRecord(rec))
		out.ParseMode = tgbotapi.ModeHTML
		out.ReplyMarkup = ratingKeyboard(rec.Timestamp)
		if _, err := b.s.Send(out); err != nil {
			logger.Log.Errorw("failed to send history entry", "chat_id", msg.Chat.ID, "error", err)
		}
	}
}

func formatRecord(rec storage.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(rec.Timestamp))
	fmt.Fprintf(&sb, "<i>Challenge:</i> %s\n", html.EscapeString(rec.Challenge))
	for i, s := range rec.Suggestions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, html.EscapeString(s))
	}
	if rec.Feedback.IsSet() {
		fmt.Fprintf(&sb, "<i>Your rating:</i> %s", html.EscapeString(string(rec.Feedback)))
	} else {
		sb.WriteString("<i>Not rated yet</i>")
	}
	return sb.String()
}

func ratingKeyboard(timestamp string) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 5)
	for n := 1; n <= 5; n++ {
		label := strconv.Itoa(n)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, ratePrefix+timestamp+"|"+label))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := b.authorize(ctx, msg.Chat.ID, session.ViewStats); !ok {
		return
	}
	stats, err := b.History.ComputeStats(ctx)
	if err != nil {
		logger.Log.Errorw("failed to compute stats", "error", err)
		b.sendMessage(msg.Chat.ID, "Error getting feedback statistics.")
		return
	}
	b.sendMessage(msg.Chat.ID, html.EscapeString(stats.Summary()))
}

func (b *Bot) handlePredict(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := b.authorize(ctx, msg.Chat.ID, session.Predict); !ok {
		return
	}
	args := strings.Fields(msg.CommandArguments())
	usage := "Usage: /predict &lt;age&gt; &lt;weeks&gt; &lt;Mild|Moderate|Severe&gt;"
	if len(args) != 3 {
		b.sendMessage(msg.Chat.ID, usage)
		return
	}
	age, err1 := strconv.Atoi(args[0])
	weeks, err2 := strconv.Atoi(args[1])
	sev, err3 := classifier.ParseSeverity(args[2])
	if err1 != nil || err2 != nil || err3 != nil {
		b.sendMessage(msg.Chat.ID, usage)
		return
	}
	if b.Predictor == nil {
		b.sendMessage(msg.Chat.ID, "The prediction model is not available.")
		return
	}
	p, err := b.Predictor.Predict(age, weeks, sev)
	if err != nil {
		b.sendMessage(msg.Chat.ID, html.EscapeString(err.Error()))
		return
	}
	verdict := "No"
	if p.Label == 1 {
		verdict = "Yes"
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Depression: <b>%s</b>\nProbability: %.2f", verdict, p.Probability))
}

func (b *Bot) handleAddUser(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := b.authorize(ctx, msg.Chat.ID, session.ManageUsers); !ok {
		return
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 || len(args) > 3 {
		b.sendMessage(msg.Chat.ID, "Usage: /adduser &lt;user&gt; &lt;password&gt; [admin]")
		return
	}
	isAdmin := len(args) == 3 && strings.EqualFold(args[2], "admin")
	created, err := b.Accounts.Create(args[0], args[1], isAdmin)
	switch {
	case err != nil:
		logger.Log.Errorw("failed to create user", "username", args[0], "error", err)
		b.sendMessage(msg.Chat.ID, "Error creating user: "+html.EscapeString(err.Error()))
	case !created:
		b.sendMessage(msg.Chat.ID, "Username already exists.")
	default:
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("User <b>%s</b> created.", html.EscapeString(args[0])))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if !strings.HasPrefix(cb.Data, ratePrefix) || cb.Message == nil {
		return
	}
	answer := b.rate(b.Sessions.Context(ctx, cb.Message.Chat.ID), strings.TrimPrefix(cb.Data, ratePrefix))
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, answer)); err != nil {
		logger.Log.Errorw("failed to answer callback", "error", err)
	}
}

// rate handles "<timestamp>|<n>" and returns the text for the callback answer.
func (b *Bot) rate(ctx context.Context, payload string) string {
	id, err := b.Gate.Authorize(ctx, session.RateSuggestions)
	if err != nil {
		return "Please /login first."
	}
	sep := strings.LastIndex(payload, "|")
	if sep < 0 {
		return "Malformed rating."
	}
	timestamp, raw := payload[:sep], payload[sep+1:]
	rating, err := storage.ParseRating(raw)
	if err != nil {
		return "Rating must be between 1 and 5."
	}
	if !b.History.Owns(ctx, id.Username, timestamp) {
		return "Interaction not found."
	}
	if err := b.History.AttachFeedback(ctx, timestamp, rating); err != nil {
		if errors.Is(err, history.ErrRecordNotFound) {
			return "Interaction not found."
		}
		logger.Log.Errorw("failed to save feedback", "timestamp", timestamp, "error", err)
		return "Error saving feedback."
	}
	return fmt.Sprintf("Thanks! Rated %s.", rating)
}
