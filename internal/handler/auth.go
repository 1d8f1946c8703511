package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/prepper/internal/apperr"
	"github.com/dukerupert/prepper/internal/auth"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

const maxCodeAttempts = 5

// Mailer sends the transactional mail the API triggers.
type Mailer interface {
	Configured() bool
	SendInvitation(ctx context.Context, toEmail, groupName, inviterName, link string) error
	SendPasswordReset(ctx context.Context, toEmail, code string) error
}

type AuthHandler struct {
	runner *store.Runner
	tokens *auth.TokenIssuer
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(runner *store.Runner, tokens *auth.TokenIssuer, mailer Mailer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		runner: runner,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *AuthHandler) issue(u *model.User) (*tokenResponse, error) {
	token, exp, err := h.tokens.Issue(u.ID)
	if err != nil {
		return nil, apperr.Internal(err, "issue token")
	}
	return &tokenResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" {
		writeError(w, r, h.logger, apperr.Validation("username is required"))
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, r, h.logger, apperr.Validation("a valid email is required"))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, r, h.logger, apperr.Validation("%v", err))
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var u *model.User
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		u, err = s.Users.Create(r.Context(), req.Username, req.Email, hash, false)
		if errors.Is(err, store.ErrConflict) {
			return apperr.Conflict("username or email already taken")
		}
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.issue(u)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// Login accepts a username or an email address.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	login := strings.TrimSpace(req.Username)
	if login == "" || req.Password == "" {
		writeError(w, r, h.logger, apperr.Validation("username and password are required"))
		return
	}

	var u *model.User
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		if u, err = s.Users.GetByUsername(r.Context(), login); err != nil || u != nil {
			return err
		}
		u, err = s.Users.GetByEmail(r.Context(), strings.ToLower(login))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if u == nil || !u.Active || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, r, h.logger, apperr.Authentication("invalid credentials"))
		return
	}

	resp, err := h.issue(u)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	var u *model.User
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		u, err = s.Users.GetByID(r.Context(), auth.UserID(r.Context()))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if u == nil {
		writeError(w, r, h.logger, apperr.NotFound("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type resetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset always answers 202 so the response does not reveal
// whether the address has an account.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" {
		writeError(w, r, h.logger, apperr.Validation("email is required"))
		return
	}

	var pr *model.PasswordReset
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		u, err := s.Users.GetByEmail(r.Context(), addr)
		if err != nil || u == nil || !u.Active {
			return err
		}
		pr, err = s.Resets.Create(r.Context(), u.ID, h.now())
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if pr != nil {
		if h.mailer == nil || !h.mailer.Configured() {
			h.logger.Warn("email not configured, password reset code not sent", "user_id", pr.UserID)
		} else if err := h.mailer.SendPasswordReset(r.Context(), addr, pr.Code); err != nil {
			h.logger.Error("send password reset", "user_id", pr.UserID, "error", err)
		}
	}
	writeJSON(w, http.StatusAccepted, statusOK("if the account exists, a reset code has been sent"))
}

type resetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// ConfirmPasswordReset sets a new password when the code matches. A code
// is burned after maxCodeAttempts wrong guesses. Attempt counts are
// committed even when the request fails.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	code := strings.TrimSpace(req.Code)
	if addr == "" || code == "" {
		writeError(w, r, h.logger, apperr.Validation("email and code are required"))
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, r, h.logger, apperr.Validation("%v", err))
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	invalid := apperr.Validation("invalid or expired code")
	var failure error
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		ctx := r.Context()
		now := h.now()
		u, err := s.Users.GetByEmail(ctx, addr)
		if err != nil {
			return err
		}
		if u == nil || !u.Active {
			failure = invalid
			return nil
		}
		pr, err := s.Resets.GetActive(ctx, u.ID, now)
		if err != nil {
			return err
		}
		if pr == nil {
			failure = invalid
			return nil
		}
		if subtle.ConstantTimeCompare([]byte(pr.Code), []byte(code)) != 1 {
			failure = invalid
			attempts, err := s.Resets.IncrementAttempts(ctx, pr.ID)
			if err != nil {
				return err
			}
			if attempts >= maxCodeAttempts {
				return s.Resets.MarkUsed(ctx, pr.ID, now)
			}
			return nil
		}
		if err := s.Users.SetPassword(ctx, u.ID, hash); err != nil {
			return err
		}
		return s.Resets.MarkUsed(ctx, pr.ID, now)
	})
	if err == nil {
		err = failure
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("password reset")
	writeJSON(w, http.StatusOK, statusOK("password updated"))
}
