package httpserver

import (
	"net/http"
	"strings"

	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/interfaces"
)

// HandleConnectWallet binds a wallet to a new session.
//
// URL format: POST /auth/connect-wallet {address}
func (h *Handler) HandleConnectWallet(w http.ResponseWriter, r *http.Request) {
	var req api.ConnectWalletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		h.writeError(w, r, badRequest("Wallet address is required"))
		return
	}
	addr, err := interfaces.ParseWalletAddress(req.Address)
	if err != nil {
		h.writeError(w, r, badRequest("Invalid wallet address"))
		return
	}

	// A reconnect replaces the previous session.
	if prev := sessionFrom(r.Context()); prev != nil {
		if err := h.sessions.Revoke(r.Context(), prev); err != nil {
			h.log.Warn("Failed to revoke replaced session", "err", err)
		}
	}

	token, sess, err := h.sessions.Issue(addr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, token, sess)

	redirect := api.StudentPortalPath
	if sess.IsInstructor {
		redirect = api.InstructorPortalPath
	}
	h.log.Info("Wallet connected", "isInstructor", sess.IsInstructor)
	writeJSON(w, http.StatusOK, api.ConnectWalletResponse{
		Success:      true,
		Address:      addr.String(),
		IsInstructor: sess.IsInstructor,
		Redirect:     redirect,
	})
}

// HandleDisconnect clears and revokes the session.
//
// URL format: POST /auth/disconnect
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r.Context()); sess != nil {
		if err := h.sessions.Revoke(r.Context(), sess); err != nil {
			h.log.Warn("Failed to revoke session", "err", err)
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

// HandleCheckSession reports the wallet bound to the session.
//
// URL format: GET /auth/check-session
func (h *Handler) HandleCheckSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusOK, api.SessionResponse{Connected: false})
		return
	}
	writeJSON(w, http.StatusOK, api.SessionResponse{
		Connected:    true,
		Address:      sess.Address.String(),
		IsInstructor: sess.IsInstructor,
	})
}
