package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/disclosure"
	"github.com/ruteri/campuscred-backend/docsign"
	"github.com/ruteri/campuscred-backend/lifecycle"
	"github.com/ruteri/campuscred-backend/session"
)

const defaultMaxUploadBytes = 16 << 20

// Handler serves the CampusCred API routes.
type Handler struct {
	engine     *lifecycle.Engine
	disclosure *disclosure.Service
	sessions   *session.Manager
	signer     *docsign.Identity

	publicBaseURL  string
	secureCookies  bool
	maxUploadBytes int64
	log            *slog.Logger
}

// HandlerOptions tunes the HTTP behavior of a Handler.
type HandlerOptions struct {
	// PublicBaseURL makes verifier URLs absolute when set.
	PublicBaseURL  string
	SecureCookies  bool
	MaxUploadBytes int64
}

func NewHandler(engine *lifecycle.Engine, disclosureSvc *disclosure.Service, sessions *session.Manager, signer *docsign.Identity, opts HandlerOptions, log *slog.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		engine:         engine,
		disclosure:     disclosureSvc,
		sessions:       sessions,
		signer:         signer,
		publicBaseURL:  strings.TrimSuffix(opts.PublicBaseURL, "/"),
		secureCookies:  opts.SecureCookies,
		maxUploadBytes: opts.MaxUploadBytes,
		log:            log,
	}
}

// RegisterRoutes configures r with every API route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.loadSession)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/connect-wallet", h.HandleConnectWallet)
			r.Post("/disconnect", h.HandleDisconnect)
			r.Get("/check-session", h.HandleCheckSession)
		})

		r.Route("/student", func(r chi.Router) {
			r.Get("/portal", h.HandleStudentClaims)
			r.Get("/claims", h.HandleStudentClaims)
			r.Post("/submit-claim", h.HandleSubmitClaim)
		})

		r.Route("/instructor", func(r chi.Router) {
			r.Use(h.requireInstructor)
			r.Get("/dashboard", h.HandleDashboard)
			r.Get("/claim/{id}", h.HandleClaimDetail)
			r.Post("/approve/{id}", h.HandleApprove)
			r.Post("/reject/{id}", h.HandleReject)
			r.Post("/retry-mint/{id}", h.HandleRetryMint)
			r.Post("/revoke/{id}", h.HandleRevoke)
			r.Post("/reconcile/{id}", h.HandleReconcile)
		})

		r.Route("/verify", func(r chi.Router) {
			r.Get("/credential/{tokenId}", h.HandleCredential)
			r.Post("/generate-verifier-link/{tokenId}", h.HandleGenerateVerifierLink)
			r.Get("/private/{token}", h.HandlePrivateView)
			r.Get("/download-evidence/{token}", h.HandleDownloadEvidence)
			r.Get("/signer-certificate", h.HandleSignerCertificate)
		})
	})
}

type sessionKey struct{}

// sessionFrom returns the wallet session of the request, or nil.
func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

// loadSession attaches a valid session to the request context. Invalid or
// revoked cookies are treated as no session.
func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(api.SessionCookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := h.sessions.Parse(r.Context(), cookie.Value)
		if err != nil {
			h.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func (h *Handler) requireInstructor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil {
			h.writeError(w, r, session.ErrNoSession)
			return
		}
		if !sess.IsInstructor {
			h.log.Warn("Instructor route refused", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, api.ErrorResponse{Error: "Instructor access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
