package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"counselor-assistant/internal/auth"
	"counselor-assistant/internal/session"
)

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

func NewListUsersHandler(gate Authorizer, accounts AccountManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := gate.Authorize(r.Context(), session.ManageUsers); err != nil {
			writeAuthError(w, err)
			return
		}
		list, err := accounts.LoadAll()
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func NewCreateUserHandler(gate Authorizer, accounts AccountManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := gate.Authorize(r.Context(), session.ManageUsers); err != nil {
			writeAuthError(w, err)
			return
		}
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := accounts.Create(req.Username, req.Password, req.IsAdmin)
		switch {
		case errors.Is(err, auth.ErrEmptyCredentials):
			writeError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			internalError(w, r, err)
		case !created:
			writeError(w, http.StatusConflict, "Username already exists")
		default:
			writeJSON(w, http.StatusCreated, auth.Account{Username: req.Username, IsAdmin: req.IsAdmin})
		}
	}
}
