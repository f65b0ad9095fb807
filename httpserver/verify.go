package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/interfaces"
)

const (
	credentialNotFoundMsg  = "Credential not found"
	verifyUnavailableMsg   = "Verification is temporarily unavailable"
	ownerOnlyMsg           = "Only credential owner can generate verifier links"
	invalidVerifierLinkMsg = "Invalid or expired verifier link"
)

// HandleCredential returns the public view of a minted credential. Failures
// are reported in the body with status 200.
//
// URL format: GET /verify/credential/{tokenId}
func (h *Handler) HandleCredential(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseUint(chi.URLParam(r, "tokenId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, api.CredentialResponse{Error: "Invalid token id"})
		return
	}

	view, err := h.disclosure.PublicView(r.Context(), tokenID)
	switch {
	case errors.Is(err, interfaces.ErrClaimNotFound):
		writeJSON(w, http.StatusOK, api.CredentialResponse{Error: credentialNotFoundMsg})
	case err != nil:
		h.log.Error("Public view failed", "err", err, "tokenID", tokenID)
		writeJSON(w, http.StatusOK, api.CredentialResponse{Error: verifyUnavailableMsg})
	default:
		writeJSON(w, http.StatusOK, api.CredentialResponse{Success: true, Credential: view})
	}
}

// HandleGenerateVerifierLink issues a disclosure link to the credential
// owner. The wallet defaults to the session wallet.
//
// URL format: POST /verify/generate-verifier-link/{tokenId} {wallet_address}
func (h *Handler) HandleGenerateVerifierLink(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseUint(chi.URLParam(r, "tokenId"), 10, 64)
	if err != nil {
		h.writeError(w, r, badRequest("Invalid token id"))
		return
	}
	var req api.VerifierLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.WalletAddress == "" {
		if sess := sessionFrom(r.Context()); sess != nil {
			req.WalletAddress = sess.Address.String()
		}
	}

	link, err := h.disclosure.CreateVerifierLink(r.Context(), tokenID, req.WalletAddress)
	switch {
	case errors.Is(err, interfaces.ErrForbidden):
		writeJSON(w, http.StatusForbidden, api.ErrorResponse{Error: ownerOnlyMsg})
		return
	case errors.Is(err, interfaces.ErrClaimNotFound):
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: credentialNotFoundMsg})
		return
	case err != nil:
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.VerifierLinkResponse{
		Success:     true,
		VerifierURL: fmt.Sprintf("%s/verify/private/%s", h.publicBaseURL, link.Token),
		ExpiresIn:   h.disclosure.ExpiresIn(link),
	})
}

// HandlePrivateView redeems a disclosure link. Unknown and expired links
// answer the same message.
//
// URL format: GET /verify/private/{token}
func (h *Handler) HandlePrivateView(w http.ResponseWriter, r *http.Request) {
	view, err := h.disclosure.PrivateView(r.Context(), chi.URLParam(r, "token"))
	switch {
	case errors.Is(err, interfaces.ErrLinkInvalid):
		writeJSON(w, http.StatusOK, api.PrivateCredentialResponse{Error: invalidVerifierLinkMsg})
	case err != nil:
		h.log.Error("Private view failed", "err", err)
		writeJSON(w, http.StatusOK, api.PrivateCredentialResponse{Error: verifyUnavailableMsg})
	default:
		writeJSON(w, http.StatusOK, api.PrivateCredentialResponse{Success: true, Credential: view})
	}
}

// HandleDownloadEvidence returns the signed evidence behind a disclosure link.
//
// URL format: GET /verify/download-evidence/{token}
func (h *Handler) HandleDownloadEvidence(w http.ResponseWriter, r *http.Request) {
	doc, err := h.disclosure.DownloadEvidence(r.Context(), chi.URLParam(r, "token"))
	switch {
	case errors.Is(err, interfaces.ErrForbidden):
		writeJSON(w, http.StatusForbidden, api.ErrorResponse{Error: invalidVerifierLinkMsg})
		return
	case errors.Is(err, interfaces.ErrEvidenceNotFound):
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "No evidence file for this credential"})
		return
	case err != nil:
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Content); err != nil {
		h.log.Warn("Failed to write evidence", "err", err)
	}
}

// HandleSignerCertificate returns the document signer certificate so that
// downloads can be checked offline.
//
// URL format: GET /verify/signer-certificate
func (h *Handler) HandleSignerCertificate(w http.ResponseWriter, r *http.Request) {
	if h.signer == nil {
		h.writeError(w, r, fmt.Errorf("%w: document signer", interfaces.ErrNotConfigured))
		return
	}
	writeJSON(w, http.StatusOK, h.signer.Info())
}
