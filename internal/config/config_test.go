package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "interaction_history.csv", cfg.HistoryFilePath)
	assert.Equal(t, "user_credentials.csv", cfg.UserDBPath)
	assert.Equal(t, BackendCSV, cfg.StorageBackend)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, 60*time.Second, cfg.SuggestionTimeout)
	assert.Equal(t, "admin", cfg.BootstrapAdminUser)
	assert.Empty(t, cfg.JWTSecret)
}

func TestNew_RejectsPlaceholderJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "change-me")

	_, err := New()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SUGGESTION_TIMEOUT", "5s")
	t.Setenv("REPORT_CHAT_ID", "42")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, 5*time.Second, cfg.SuggestionTimeout)
	assert.Equal(t, int64(42), cfg.ReportChatID)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "mongo")

	_, err := New()
	assert.Error(t, err)
}

func TestNew_RejectsUnknownHash(t *testing.T) {
	t.Setenv("PASSWORD_HASH", "md5")

	_, err := New()
	assert.Error(t, err)
}
