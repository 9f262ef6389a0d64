package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/pawstails-storefront/internal/domain/session"
)

// SessionState is the response of GET /api/session.
type SessionState struct {
	LoggedIn bool             `json:"loggedIn"`
	Admin    bool             `json:"admin"`
	UserName string           `json:"userName,omitempty"`
	Account  *session.Account `json:"account,omitempty"`
}

// GetSession reports whether a shopper is signed in.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	acc, err := h.sessions.Current(r.Context())
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeJSON(w, r, http.StatusOK, SessionState{})
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}

	name, err := h.sessions.UserName(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SessionState{
		LoggedIn: true,
		Admin:    acc.IsAdmin(),
		UserName: name,
		Account:  &acc,
	})
}

// Login stores the account returned by the commerce API login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var acc session.Account
	if err := decodeBody(w, r, &acc); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.sessions.Login(r.Context(), acc); err != nil {
		if errors.Is(err, session.ErrInvalidAccount) {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, SessionState{
		LoggedIn: true,
		Admin:    acc.IsAdmin(),
		UserName: acc.DisplayName(),
		Account:  &acc,
	})
}

// Logout clears the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		writeInternal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
