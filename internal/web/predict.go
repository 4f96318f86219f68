package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/session"
)

type PredictRequest struct {
	Age           int    `json:"age"`
	DurationWeeks int    `json:"duration_weeks"`
	Severity      string `json:"severity"`
}

type PredictResponse struct {
	Depression  bool    `json:"depression"`
	Probability float64 `json:"probability"`
}

func NewPredictHandler(gate Authorizer, predictor classifier.Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := gate.Authorize(r.Context(), session.Predict); err != nil {
			writeAuthError(w, err)
			return
		}
		var req PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sev, err := classifier.ParseSeverity(req.Severity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if predictor == nil {
			writeError(w, http.StatusServiceUnavailable, classifier.ErrNoModel.Error())
			return
		}

		p, err := predictor.Predict(req.Age, req.DurationWeeks, sev)
		switch {
		case errors.Is(err, classifier.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, classifier.ErrNoModel):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, PredictResponse{Depression: p.Label == 1, Probability: p.Probability})
	}
}
