package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/prepper/internal/auth"
	"github.com/dukerupert/prepper/internal/invite"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

type GroupHandler struct {
	runner  *store.Runner
	invites *invite.Manager
	mailer  Mailer
	baseURL string
	logger  *slog.Logger
}

func NewGroupHandler(runner *store.Runner, invites *invite.Manager, mailer Mailer, baseURL string, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		runner:  runner,
		invites: invites,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// inviteLink joins a client-supplied base, or the configured one, with
// the token.
func (h *GroupHandler) inviteLink(base, token string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = h.baseURL + "/join"
	}
	return base + "/" + url.PathEscape(token)
}

type invitationResponse struct {
	*model.Invitation
	URL       string `json:"url"`
	EmailSent bool   `json:"email_sent"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in invite.GroupInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var g *model.Group
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		g, err = h.invites.CreateGroup(r.Context(), s, auth.UserID(r.Context()), in)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	var groups []model.GroupSummary
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		groups, err = h.invites.ListGroups(r.Context(), s, auth.UserID(r.Context()))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var g *model.GroupDetail
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		g, err = h.invites.GetGroup(r.Context(), s, id, auth.UserID(r.Context()))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in invite.GroupInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var g *model.Group
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		g, err = h.invites.UpdateGroup(r.Context(), s, id, auth.UserID(r.Context()), in)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		return h.invites.DeleteGroup(r.Context(), s, id, auth.UserID(r.Context()))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK("deleted"))
}

func (h *GroupHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var g *model.Group
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		g, err = h.invites.RegenerateInviteCode(r.Context(), s, id, auth.UserID(r.Context()))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	code, err := pathString(r, "code")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var mem *model.Membership
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		mem, err = h.invites.JoinByCode(r.Context(), s, code, auth.UserID(r.Context()))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

type generateTokenRequest struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// GenerateInviteToken mints a link-only invitation. The body is optional;
// it may carry a token minted elsewhere and the link base to use.
func (h *GroupHandler) GenerateInviteToken(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req generateTokenRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var inv *model.Invitation
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		inv, err = h.invites.CreateInvitation(r.Context(), s, id, auth.UserID(r.Context()),
			invite.CreateParams{Token: strings.TrimSpace(req.Token)})
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      inv.Token,
		"expires_at": inv.ExpiresAt,
		"url":        h.inviteLink(req.URL, inv.Token),
	})
}

type inviteEmailRequest struct {
	Email string `json:"email"`
	URL   string `json:"url"`
}

// InviteByEmail creates an email invitation and mails the link. A mail
// failure is logged and the invitation still stands.
func (h *GroupHandler) InviteByEmail(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req inviteEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	userID := auth.UserID(r.Context())

	var (
		inv         *model.Invitation
		groupName   string
		inviterName string
	)
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		inv, err = h.invites.InviteByEmail(r.Context(), s, id, userID, req.Email)
		if err != nil {
			return err
		}
		g, err := s.Groups.GetByID(r.Context(), id)
		if err != nil {
			return err
		}
		groupName = g.Name
		u, err := s.Users.GetByID(r.Context(), userID)
		if err != nil {
			return err
		}
		if u != nil {
			inviterName = u.Username
		}
		return nil
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := invitationResponse{Invitation: inv, URL: h.inviteLink(req.URL, inv.Token)}
	switch {
	case h.mailer == nil || !h.mailer.Configured():
		h.logger.Info("email not configured, invitation link not sent", "group_id", id, "url", resp.URL)
	default:
		if err := h.mailer.SendInvitation(r.Context(), inv.InvitedEmail, groupName, inviterName, resp.URL); err != nil {
			h.logger.Error("send invitation", "group_id", id, "error", err)
		} else {
			resp.EmailSent = true
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ValidateInvitation previews a token. It is the one group route that
// needs no authentication.
func (h *GroupHandler) ValidateInvitation(w http.ResponseWriter, r *http.Request) {
	token, err := pathString(r, "token")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var preview *model.InvitationPreview
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		preview, err = h.invites.ValidateInvitation(r.Context(), s, token)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *GroupHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	token, err := pathString(r, "token")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var mem *model.Membership
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		mem, err = h.invites.ConsumeInvitation(r.Context(), s, token, auth.UserID(r.Context()))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (h *GroupHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	token, err := pathString(r, "token")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		return h.invites.DeclineInvitation(r.Context(), s, token, auth.UserID(r.Context()))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK("declined"))
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	target, err := parsePathInt(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		return h.invites.RemoveMember(r.Context(), s, id, auth.UserID(r.Context()), target)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK("removed"))
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		return h.invites.LeaveGroup(r.Context(), s, id, auth.UserID(r.Context()))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK("left"))
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *GroupHandler) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	target, err := parsePathInt(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		return h.invites.SetMemberRole(r.Context(), s, id, auth.UserID(r.Context()), target, strings.TrimSpace(req.Role))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK("updated"))
}
