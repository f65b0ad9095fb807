package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/interfaces"
)

const dashboardRecentLimit = 5

// HandleDashboard returns pending claims, recent approvals and mints, and
// claim statistics.
//
// URL format: GET /instructor/dashboard
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := h.engine.List(ctx, interfaces.ClaimFilter{Status: interfaces.StatusPending})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	approved, err := h.engine.List(ctx, interfaces.ClaimFilter{
		Status:  interfaces.StatusApproved,
		OrderBy: interfaces.OrderByApproved,
		Limit:   dashboardRecentLimit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	minted, err := h.engine.List(ctx, interfaces.ClaimFilter{
		Status:  interfaces.StatusMinted,
		OrderBy: interfaces.OrderByMinted,
		Limit:   dashboardRecentLimit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.engine.Stats(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.DashboardResponse{
		PendingClaims:  summarize(pending),
		ApprovedClaims: summarize(approved),
		MintedClaims:   summarize(minted),
		Stats:          stats,
	})
}

// HandleClaimDetail returns a single claim.
//
// URL format: GET /instructor/claim/{id}
func (h *Handler) HandleClaimDetail(w http.ResponseWriter, r *http.Request) {
	id, err := claimID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	claim, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimDetail(claim))
}

// HandleApprove approves a pending claim and mints it when a wallet is bound.
// A mint failure still answers 200 with minting_error set.
//
// URL format: POST /instructor/approve/{id}
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := claimID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Approve(r.Context(), id, "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := api.ApproveResponse{
		Success: true,
		Status:  res.Claim.Status,
		TokenID: res.Claim.TokenID,
		TxHash:  res.Claim.TxHash,
	}
	switch {
	case res.MintErr != nil:
		resp.MintingError = res.MintErr.Error()
		resp.Message = fmt.Sprintf("Claim #%d approved, but minting failed", id)
	case res.Minted:
		resp.Message = fmt.Sprintf("Claim #%d approved and credential minted!", id)
	default:
		resp.Message = fmt.Sprintf("Claim #%d approved successfully!", id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleReject denies a pending claim.
//
// URL format: POST /instructor/reject/{id} {reason?}
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, err := claimID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req api.ReasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.engine.Reject(r.Context(), id, req.Reason, ""); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse{
		Success: true,
		Message: fmt.Sprintf("Claim #%d rejected", id),
	})
}

// HandleRetryMint mints an approved claim whose earlier mint failed.
//
// URL format: POST /instructor/retry-mint/{id}
func (h *Handler) HandleRetryMint(w http.ResponseWriter, r *http.Request) {
	id, err := claimID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	claim, err := h.engine.RetryMint(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MintResponse{
		Success: true,
		TokenID: claim.TokenID,
		TxHash:  claim.TxHash,
	})
}

// HandleRevoke revokes the credential of a minted claim on chain.
//
// URL format: POST /instructor/revoke/{id} {reason?}
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := claimID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req api.ReasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Revoke(r.Context(), id, req.Reason, "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RevokeResponse{Success: true, TxHash: res.TxHash})
}

// HandleReconcile records the token id of a minted claim whose receipt did
// not reveal it.
//
// URL format: POST /instructor/reconcile/{id} {token_id}
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	id, err := claimID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req api.ReconcileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	claim, err := h.engine.ReconcileToken(r.Context(), id, req.TokenID, "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MintResponse{
		Success: true,
		TokenID: claim.TokenID,
		TxHash:  claim.TxHash,
	})
}

func claimID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid claim id")
	}
	return id, nil
}

func claimDetail(c *interfaces.Claim) api.ClaimDetail {
	d := api.ClaimDetail{
		ID:              c.ID,
		StudentName:     c.StudentName,
		StudentEmail:    c.StudentEmail,
		StudentAddress:  "N/A",
		CredentialType:  c.CredentialType,
		CourseCode:      c.CourseCode,
		CourseName:      c.CourseName(),
		Description:     c.Description,
		Status:          c.Status,
		SubmittedAt:     c.CreatedAt.Format(claimTimeLayout),
		ReviewedBy:      c.ReviewedBy,
		InstructorNotes: c.InstructorNotes,
		TokenID:         c.TokenID,
		TxHash:          c.TxHash,
		MetadataURI:     c.MetadataURI,
	}
	if c.HasWallet() {
		d.StudentAddress = c.WalletAddress.String()
	}
	if c.Evidence != nil {
		d.EvidenceFile = c.Evidence.FileName
		d.EvidenceHash = c.Evidence.Hash
	}
	return d
}
