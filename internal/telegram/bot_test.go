package telegram

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counselor-assistant/internal/auth"
	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/history"
	"counselor-assistant/internal/llm"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/storage"
	"counselor-assistant/internal/suggest"
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

type fakeLLM struct{ content string }

func (f fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	return llm.Response{Content: f.content}, nil
}

type fakePredictor struct{}

func (fakePredictor) Predict(age, weeks int, sev classifier.Severity) (classifier.Prediction, error) {
	return classifier.Prediction{Label: 1, Probability: 0.8}, nil
}

func newTestBot(t *testing.T) (*Bot, *fakeSender, *history.Log) {
	t.Helper()
	dir := t.TempDir()

	repo, err := auth.NewFileRepository(filepath.Join(dir, "users.csv"))
	require.NoError(t, err)
	accounts := auth.NewWithRepo(repo, auth.SHA256Hasher{})
	_, err = accounts.Bootstrap("admin", "admin123")
	require.NoError(t, err)
	_, err = accounts.Create("alice", "pw", false)
	require.NoError(t, err)

	store, err := storage.NewCSVStore(filepath.Join(dir, "history.csv"))
	require.NoError(t, err)
	log := history.NewLog(store)

	fs := &fakeSender{}
	b := newWithSender(fs, Deps{
		Gate:         session.NewGate(accounts),
		Accounts:     accounts,
		History:      log,
		Suggest:      suggest.New(fakeLLM{content: `{"suggestions":["listen <closely>","reflect"]}`}, log, log, time.Second),
		Predictor:    fakePredictor{},
		ReportChatID: 99,
	}, nil)
	return b, fs, log
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmd := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: chatID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func text(chatID int64, s string) *tgbotapi.Message {
	return &tgbotapi.Message{From: &tgbotapi.User{ID: chatID}, Chat: &tgbotapi.Chat{ID: chatID}, Text: s}
}

func TestSuggestRequiresLogin(t *testing.T) {
	b, fs, log := newTestBot(t)
	ctx := context.Background()

	b.handleIncomingMessage(ctx, command(1, "/suggest client cannot sleep"))

	assert.Contains(t, fs.last(), "/login")
	assert.Empty(t, log.ListForUser(ctx, "alice"))
}

func TestLoginDeletesPasswordMessage(t *testing.T) {
	b, fs, _ := newTestBot(t)

	b.handleIncomingMessage(context.Background(), command(1, "/login alice pw"))

	require.Len(t, fs.requests, 1)
	del, ok := fs.requests[0].(tgbotapi.DeleteMessageConfig)
	require.True(t, ok)
	assert.Equal(t, 7, del.MessageID)
	assert.Contains(t, fs.last(), "Logged in as <b>alice</b>")

	id, ok := b.Sessions.Get(1)
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	b, fs, _ := newTestBot(t)

	b.handleIncomingMessage(context.Background(), command(1, "/login alice nope"))

	assert.Equal(t, "Invalid username or password", fs.last())
	_, ok := b.Sessions.Get(1)
	assert.False(t, ok)
}

func TestPlainTextIsChallenge(t *testing.T) {
	b, fs, log := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))

	b.handleIncomingMessage(ctx, text(1, "client reports panic attacks"))

	reply := fs.sent[len(fs.sent)-1]
	assert.Contains(t, reply.Text, "1. listen &lt;closely&gt;")
	assert.Contains(t, reply.Text, "2. reflect")
	kb, ok := reply.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard[0], 5)

	records := log.ListForUser(ctx, "alice")
	require.Len(t, records, 1)
	assert.Equal(t, "client reports panic attacks", records[0].Challenge)
	assert.Equal(t, "rate|"+records[0].Timestamp+"|5", *kb.InlineKeyboard[0][4].CallbackData)
}

func TestRatingCallback(t *testing.T) {
	b, fs, log := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))
	b.handleIncomingMessage(ctx, command(1, "/suggest trouble focusing"))
	ts := log.ListForUser(ctx, "alice")[0].Timestamp

	cb := &tgbotapi.CallbackQuery{ID: "cb1", Data: "rate|" + ts + "|4", Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}
	b.handleCallback(ctx, cb)

	assert.Equal(t, storage.Rating("4"), log.ListForUser(ctx, "alice")[0].Feedback)
	answer, ok := fs.requests[len(fs.requests)-1].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "Thanks! Rated 4.", answer.Text)
}

func TestRatingCallbackRejectsForeignRecord(t *testing.T) {
	b, _, log := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))
	b.handleIncomingMessage(ctx, command(1, "/suggest trouble focusing"))
	ts := log.ListForUser(ctx, "alice")[0].Timestamp

	b.handleIncomingMessage(ctx, command(2, "/login admin admin123"))
	got := b.rate(b.Sessions.Context(ctx, 2), ts+"|5")

	assert.Equal(t, "Interaction not found.", got)
	assert.False(t, log.ListForUser(ctx, "alice")[0].Feedback.IsSet())
}

func TestRateRejectsOutOfRange(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))

	assert.Equal(t, "Rating must be between 1 and 5.", b.rate(b.Sessions.Context(ctx, 1), "x|9"))
}

func TestHistoryEmpty(t *testing.T) {
	b, fs, _ := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))

	b.handleIncomingMessage(ctx, command(1, "/history"))

	assert.Equal(t, "No interaction history found.", fs.last())
}

func TestAddUserIsAdminOnly(t *testing.T) {
	b, fs, _ := newTestBot(t)
	ctx := context.Background()

	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))
	b.handleIncomingMessage(ctx, command(1, "/adduser bob secret"))
	assert.Equal(t, "This command is available to admins only.", fs.last())

	b.handleIncomingMessage(ctx, command(2, "/login admin admin123"))
	b.handleIncomingMessage(ctx, command(2, "/adduser bob secret"))
	assert.Contains(t, fs.last(), "User <b>bob</b> created.")

	b.handleIncomingMessage(ctx, command(2, "/adduser bob other"))
	assert.Equal(t, "Username already exists.", fs.last())
}

func TestPredict(t *testing.T) {
	b, fs, _ := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))

	b.handleIncomingMessage(ctx, command(1, "/predict 30 8 Severe"))
	assert.Contains(t, fs.last(), "Depression: <b>Yes</b>")
	assert.Contains(t, fs.last(), "Probability: 0.80")

	b.handleIncomingMessage(ctx, command(1, "/predict thirty 8 Severe"))
	assert.Contains(t, fs.last(), "Usage: /predict")
}

func TestStatsAndDailyReport(t *testing.T) {
	b, fs, _ := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))

	b.handleIncomingMessage(ctx, command(1, "/stats"))
	assert.Contains(t, fs.last(), "Average rating: N/A")

	require.NoError(t, b.SendDailyReport(ctx))
	assert.Equal(t, int64(99), fs.sent[len(fs.sent)-1].ChatID)
	assert.True(t, strings.HasPrefix(fs.last(), "<b>Daily report</b>"))
}

func TestLogoutEndsSession(t *testing.T) {
	b, fs, _ := newTestBot(t)
	ctx := context.Background()
	b.handleIncomingMessage(ctx, command(1, "/login alice pw"))
	b.handleIncomingMessage(ctx, command(1, "/logout"))

	b.handleIncomingMessage(ctx, command(1, "/history"))
	assert.Contains(t, fs.last(), "/login")
}
