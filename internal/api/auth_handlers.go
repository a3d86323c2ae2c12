package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/carbon/internal/accounts"
	"example.com/carbon/internal/auth"
	"example.com/carbon/internal/domain"
)

// SignupRequest is the payload for POST /api/v1/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ClaimRequest names the anonymous session whose activities to transfer.
type ClaimRequest struct {
	SessionID string `json:"session_id"`
}

// UserView is the public account representation.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResponse pairs an account with a freshly issued token.
type AuthResponse struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

// ClaimResponse reports how many activities a claim transferred.
type ClaimResponse struct {
	ClaimedCount int64 `json:"claimed_count"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	user, err := h.accounts.Signup(r.Context(), accounts.SignupInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeValidationError(w, validationErr.Messages())
		case errors.Is(err, accounts.ErrEmailTaken):
			writeValidationError(w, []string{"email has already been taken"})
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	token, err := auth.Issue(user.ID, h.authCfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: toUserView(user), Token: token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	token, err := auth.Issue(user.ID, h.authCfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: toUserView(user), Token: token})
}

// logout exists for client symmetry; tokens are stateless so there is
// nothing to revoke server-side.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	user, err := h.accounts.Get(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "account no longer exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]UserView{"user": toUserView(user)})
}

// claim transfers the caller's anonymous activities to their account.
// A missing session id is a bad request, distinct from the unauthorized
// answer given when no valid account token was presented.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session id required")
		return
	}

	count, err := h.service.ClaimSessionActivities(r.Context(), req.SessionID, claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ClaimResponse{ClaimedCount: count})
}

func toUserView(user *accounts.User) UserView {
	return UserView{ID: user.ID, Email: user.Email, Name: user.Name}
}
