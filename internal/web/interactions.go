package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"counselor-assistant/internal/dataset"
	"counselor-assistant/internal/history"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/storage"
	"counselor-assistant/internal/suggest"
)

type SuggestionsRequest struct {
	Challenge string `json:"challenge"`
	// UseDataset adds the current (searched) dataset rows as context.
	UseDataset bool `json:"use_dataset"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Diagnostic  bool     `json:"diagnostic"`
	SaveError   string   `json:"save_error,omitempty"`
}

func NewSuggestionsHandler(gate Authorizer, svc Suggester, datasets *datasetCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gate.Authorize(r.Context(), session.RequestSuggestions)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		var req SuggestionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var rows []dataset.Row
		if req.UseDataset {
			if view, ok := datasets.view(id.Username); ok {
				rows = view.Rows()
			}
		}

		suggestions, rec, err := svc.Submit(r.Context(), id.Username, req.Challenge, rows)
		if errors.Is(err, suggest.ErrEmptyChallenge) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp := SuggestionsResponse{
			Suggestions: suggestions,
			Timestamp:   rec.Timestamp,
			Diagnostic:  suggest.IsDiagnostic(suggestions),
		}
		if err != nil {
			resp.SaveError = "The suggestions could not be saved to your history."
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func NewHistoryHandler(gate Authorizer, log InteractionLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gate.Authorize(r.Context(), session.ViewHistory)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, log.ListForUser(r.Context(), id.Username))
	}
}

type FeedbackRequest struct {
	Rating json.Number `json:"rating"`
}

func NewFeedbackHandler(gate Authorizer, log InteractionLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gate.Authorize(r.Context(), session.RateSuggestions)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		timestamp := chi.URLParam(r, "timestamp")

		var req FeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rating, err := storage.ParseRating(req.Rating.String())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if !log.Owns(r.Context(), id.Username, timestamp) {
			writeError(w, http.StatusNotFound, "interaction not found")
			return
		}
		if err := log.AttachFeedback(r.Context(), timestamp, rating); err != nil {
			if errors.Is(err, history.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "interaction not found")
				return
			}
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"timestamp": timestamp, "feedback": string(rating)})
	}
}

func NewStatsHandler(gate Authorizer, log InteractionLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := gate.Authorize(r.Context(), session.ViewStats); err != nil {
			writeAuthError(w, err)
			return
		}
		stats, err := log.ComputeStats(r.Context())
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
