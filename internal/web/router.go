package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"counselor-assistant/internal/analytics"
	"counselor-assistant/internal/auth"
	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/dataset"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/storage"
)

const SessionCookie = "session"

// Authorizer admits request identities.
type Authorizer interface {
	Login(username, password string) (session.Identity, error)
	Authorize(ctx context.Context, p session.Permission) (session.Identity, error)
}

type TokenIssuer interface {
	TokenParser
	Issue(id session.Identity) (string, error)
}

type AccountManager interface {
	LoadAll() ([]auth.Account, error)
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

type Deps struct {
	Gate           Authorizer
	Tokens         TokenIssuer
	Accounts       AccountManager
	History        InteractionLog
	Suggest        Suggester
	Predictor      classifier.Predictor
	MaxUploadBytes int64
}

// NewRouter builds the JSON API.
func NewRouter(d Deps) http.Handler {
	datasets := newDatasetCache()

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware(logger.Log))
	r.Use(AuthMiddleware(d.Tokens))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", NewLoginHandler(d.Gate, d.Tokens))
		r.Post("/logout", NewLogoutHandler())
		r.Get("/me", NewMeHandler(d.Gate))

		r.Post("/suggestions", NewSuggestionsHandler(d.Gate, d.Suggest, datasets))

		r.Get("/history", NewHistoryHandler(d.Gate, d.History))
		r.Post("/history/{timestamp}/feedback", NewFeedbackHandler(d.Gate, d.History))
		r.Get("/stats", NewStatsHandler(d.Gate, d.History))

		r.Post("/dataset", NewDatasetUploadHandler(d.Gate, datasets, d.MaxUploadBytes))
		r.Get("/dataset", NewDatasetInfoHandler(d.Gate, datasets))
		r.Get("/dataset/search", NewDatasetSearchHandler(d.Gate, datasets))

		r.Post("/predict", NewPredictHandler(d.Gate, d.Predictor))

		r.Get("/users", NewListUsersHandler(d.Gate, d.Accounts))
		r.Post("/users", NewCreateUserHandler(d.Gate, d.Accounts))
	})
	return r
}
