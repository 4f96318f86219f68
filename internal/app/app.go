package app

import (
	"context"
	"errors"
	"fmt"

	"counselor-assistant/internal/auth"
	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/config"
	"counselor-assistant/internal/history"
	"counselor-assistant/internal/llm"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/storage"
	"counselor-assistant/internal/suggest"
)

// App holds the components shared by every front-end binary.
type App struct {
	Config    *config.Config
	Store     storage.Store
	Accounts  *auth.Service
	History   *history.Log
	Gate      *session.Gate
	Tokens    *session.Tokens
	Suggest   *suggest.Service
	Predictor classifier.Predictor

	closers []func() error
}

// New wires storage, accounts and services from cfg. The LLM client is
// optional: without a credential suggestions return the configuration diagnostic.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	accounts, err := NewAccounts(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Accounts = accounts

	client, err := NewLLMClient(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.History = history.NewLog(store)
	a.Gate = session.NewGate(accounts)
	secret := cfg.JWTSecret
	if secret == "" {
		if secret, err = session.GenerateSecret(); err != nil {
			_ = a.Close()
			return nil, err
		}
		logger.Log.Warn("JWT_SECRET not set, using a random per-process key; sessions end on restart")
	}
	a.Tokens = session.NewTokens(secret, cfg.JWTTTL)
	a.Suggest = suggest.New(client, a.History, a.History, cfg.SuggestionTimeout)
	a.Predictor = &classifier.LazyPredictor{ModelPath: cfg.ModelPath, DatasetPath: cfg.DatasetPath}
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStore returns the configured interaction store and its close func, if any.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, func() error, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		st, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Log.Infow("interaction store opened", "backend", "sqlite", "path", cfg.SQLitePath)
		return st, st.Close, nil
	case config.BackendCSV, "":
		st, err := storage.NewCSVStore(cfg.HistoryFilePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Log.Infow("interaction store opened", "backend", "csv", "path", cfg.HistoryFilePath)
		return st, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

// NewAccounts opens the account table and seeds the bootstrap admin when it does not exist.
func NewAccounts(cfg *config.Config) (*auth.Service, error) {
	repo, err := auth.NewFileRepository(cfg.UserDBPath)
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewHasher(cfg.PasswordHash)
	if err != nil {
		return nil, err
	}
	svc := auth.NewWithRepo(repo, hasher)
	created, err := svc.Bootstrap(cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword)
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Log.Infow("account table created", "path", cfg.UserDBPath, "admin", cfg.BootstrapAdminUser)
	}
	return svc, nil
}

// NewLLMClient returns nil without error when the provider has no credential.
func NewLLMClient(cfg *config.Config) (llm.Client, error) {
	client, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if errors.Is(err, llm.ErrMissingCredential) {
		logger.Log.Warnw("llm credential not set, suggestions are disabled", "provider", cfg.LLMProvider)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
