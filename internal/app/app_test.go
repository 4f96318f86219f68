package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counselor-assistant/internal/config"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/suggest"
	"counselor-assistant/internal/web"
)

func testConfig(t *testing.T, backend config.StorageBackend) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		UserDBPath:             filepath.Join(dir, "user_credentials.csv"),
		PasswordHash:           "sha256",
		BootstrapAdminUser:     "admin",
		BootstrapAdminPassword: "admin123",
		StorageBackend:         backend,
		HistoryFilePath:        filepath.Join(dir, "interaction_history.csv"),
		SQLitePath:             filepath.Join(dir, "interactions.db"),
		JWTSecret:              "test",
		JWTTTL:                 time.Hour,
		LLMProvider:            config.ProviderOpenAI,
		OpenAIModel:            "gpt-4o",
		SuggestionTimeout:      time.Second,
		ModelPath:              filepath.Join(dir, "model.json"),
		DatasetPath:            filepath.Join(dir, "dataset.csv"),
	}
}

func TestNew_WiresComponents(t *testing.T) {
	for _, backend := range []config.StorageBackend{config.BackendCSV, config.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			a, err := New(context.Background(), testConfig(t, backend))
			require.NoError(t, err)
			defer a.Close()

			assert.True(t, a.Accounts.Authenticate("admin", "admin123"))
			assert.True(t, a.Accounts.IsAdmin("admin"))

			got, rec, err := a.Suggest.Submit(context.Background(), "admin", "low mood", nil)
			require.NoError(t, err)
			assert.Equal(t, []string{suggest.NoCredentialMessage}, got)
			assert.NotEmpty(t, rec.Timestamp)

			hist := a.History.ListForUser(context.Background(), "admin")
			require.Len(t, hist, 1)
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, _, err := OpenStore(context.Background(), testConfig(t, "mongo"))
	assert.Error(t, err)
}

func TestNewAccounts_BootstrapOnlyOnce(t *testing.T) {
	cfg := testConfig(t, config.BackendCSV)
	svc, err := NewAccounts(cfg)
	require.NoError(t, err)
	_, err = svc.Create("bob", "pw", false)
	require.NoError(t, err)

	cfg.BootstrapAdminPassword = "changed"
	again, err := NewAccounts(cfg)
	require.NoError(t, err)
	assert.True(t, again.Authenticate("admin", "admin123"))
	assert.False(t, again.Authenticate("admin", "changed"))

	accounts, err := again.LoadAll()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestNew_EmptySecretRejectsPlaceholderTokens(t *testing.T) {
	cfg := testConfig(t, config.BackendCSV)
	cfg.JWTSecret = ""
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(web.NewRouter(web.Deps{
		Gate:     a.Gate,
		Tokens:   a.Tokens,
		Accounts: a.Accounts,
		History:  a.History,
		Suggest:  a.Suggest,
	}))
	defer srv.Close()

	forged, err := session.NewTokens("change-me", time.Hour).Issue(session.Identity{Username: "admin", IsAdmin: true})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/users",
		bytes.NewBufferString(`{"username":"mallory","password":"x","is_admin":true}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, a.Accounts.Exists("mallory"))
}
