package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/ruteri/campuscred-backend/lifecycle"
)

const (
	flashCookieName = "campuscred_flash"
	claimTimeLayout = "2006-01-02 15:04"
)

// HandleStudentClaims lists the claims of the session wallet. Without a
// session every claim is listed with personal fields removed. A pending
// flash message is returned once and cleared.
//
// URL format: GET /student/claims
func (h *Handler) HandleStudentClaims(w http.ResponseWriter, r *http.Request) {
	filter := interfaces.ClaimFilter{}
	resp := api.StudentClaimsResponse{}
	if sess := sessionFrom(r.Context()); sess != nil {
		filter.Wallet = sess.Address
		resp.Wallet = sess.Address.String()
	}

	list, err := h.engine.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp.Claims = summarize(list)
	if resp.Wallet == "" {
		redact(resp.Claims)
	}
	resp.Flash = h.popFlash(w, r)
	writeJSON(w, http.StatusOK, resp)
}

// HandleSubmitClaim creates a claim from a multipart form. Browser posts are
// redirected to the portal with a flash message; JSON clients get
// api.SubmitClaimResponse.
//
// URL format: POST /student/submit-claim
func (h *Handler) HandleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.submitFailed(w, r, badRequest("Invalid claim submission"))
		return
	}

	req := lifecycle.SubmitRequest{
		StudentName:    r.FormValue("student_name"),
		StudentEmail:   r.FormValue("student_email"),
		CredentialType: r.FormValue("credential_type"),
		CourseCode:     r.FormValue("course_code"),
		CourseName:     r.FormValue("course_name"),
		Description:    r.FormValue("description"),
	}
	sess := sessionFrom(r.Context())
	if sess != nil {
		req.WalletAddress = sess.Address.String()
	}

	if file, header, err := r.FormFile("evidence"); err == nil {
		data, rerr := io.ReadAll(file)
		file.Close()
		if rerr != nil {
			h.submitFailed(w, r, badRequest("Failed to read evidence file"))
			return
		}
		req.Evidence = &lifecycle.EvidenceUpload{FileName: header.Filename, Data: data}
	}

	claim, err := h.engine.Submit(r.Context(), req)
	if err != nil {
		h.submitFailed(w, r, err)
		return
	}

	msg := fmt.Sprintf("Claim submitted successfully! Tracking ID: #%d.", claim.ID)
	if claim.HasWallet() {
		msg += " Your wallet is connected - NFT will be minted when approved!"
	} else {
		msg += " Connect your wallet to receive an NFT when approved."
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, api.SubmitClaimResponse{
			Success:  true,
			ClaimID:  claim.ID,
			Message:  msg,
			Redirect: api.StudentPortalPath,
		})
		return
	}
	h.setFlash(w, api.Flash{Category: "success", Message: msg})
	http.Redirect(w, r, api.StudentPortalPath, http.StatusSeeOther)
}

func (h *Handler) submitFailed(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) {
		h.writeError(w, r, err)
		return
	}
	msg := userMessage(err.Error())
	if statusFor(err) == http.StatusInternalServerError {
		h.log.Error("Claim submission failed", "err", err)
		msg = "Error submitting claim, please try again"
	}
	h.setFlash(w, api.Flash{Category: "danger", Message: msg})
	http.Redirect(w, r, api.StudentPortalPath, http.StatusSeeOther)
}

func (h *Handler) setFlash(w http.ResponseWriter, f api.Flash) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) *api.Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var f api.Flash
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

func summarize(list []*interfaces.Claim) []api.ClaimSummary {
	out := make([]api.ClaimSummary, 0, len(list))
	for _, c := range list {
		out = append(out, api.ClaimSummary{
			ID:             c.ID,
			StudentName:    c.StudentName,
			CredentialType: c.CredentialType,
			CourseCode:     c.CourseCode,
			Description:    c.Description,
			Status:         c.Status,
			WalletAddress:  c.WalletAddress.String(),
			TokenID:        c.TokenID,
			TxHash:         c.TxHash,
			SubmittedAt:    c.CreatedAt.Format(claimTimeLayout),
		})
	}
	return out
}

// redact clears the fields that identify a student.
func redact(claims []api.ClaimSummary) {
	for i := range claims {
		claims[i].StudentName = ""
		claims[i].Description = ""
		claims[i].WalletAddress = ""
	}
}
