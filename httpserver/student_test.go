package httpserver

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimForm(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("evidence", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func aliceForm() map[string]string {
	return map[string]string{
		"student_name":    "Alice",
		"student_email":   "alice@x.com",
		"credential_type": "micro",
		"course_code":     "02369",
		"course_name":     "Software Engineering",
		"description":     "Team project",
	}
}

func (ts *testServer) postForm(t *testing.T, body *bytes.Buffer, contentType string, asJSON bool, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/student/submit-claim", body)
	req.Header.Set("Content-Type", contentType)
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestSubmitClaim_JSON(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.connect(t, aliceWallet)

	body, ct := claimForm(t, aliceForm(), "transcript.pdf", []byte("%PDF-1.4 transcript"))
	w := ts.postForm(t, body, ct, true, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[api.SubmitClaimResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.ClaimID)
	assert.Contains(t, resp.Message, "Tracking ID: #1")
	assert.Contains(t, resp.Message, "Your wallet is connected")

	claim, err := ts.engine.Get(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, aliceWallet, claim.WalletAddress.String())
	assert.Equal(t, "Software Engineering: Team project", claim.Description)
	require.NotNil(t, claim.Evidence)
	assert.Equal(t, "transcript.pdf", claim.Evidence.FileName)
}

func TestSubmitClaim_WithoutWallet(t *testing.T) {
	ts := newTestServer(t)

	body, ct := claimForm(t, aliceForm(), "", nil)
	w := ts.postForm(t, body, ct, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[api.SubmitClaimResponse](t, w).Message, "Connect your wallet")
}

func TestSubmitClaim_ValidationJSON(t *testing.T) {
	ts := newTestServer(t)

	fields := aliceForm()
	delete(fields, "student_name")
	body, ct := claimForm(t, fields, "", nil)
	w := ts.postForm(t, body, ct, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please fill in all required fields", decode[api.ErrorResponse](t, w).Error)

	fields = aliceForm()
	fields["student_email"] = "alice.x.com"
	body, ct = claimForm(t, fields, "", nil)
	w = ts.postForm(t, body, ct, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please enter a valid email address", decode[api.ErrorResponse](t, w).Error)
}

func TestSubmitClaim_BrowserRedirectAndFlash(t *testing.T) {
	ts := newTestServer(t)

	body, ct := claimForm(t, aliceForm(), "", nil)
	w := ts.postForm(t, body, ct, false)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, api.StudentPortalPath, w.Header().Get("Location"))

	var flash *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == flashCookieName {
			flash = c
		}
	}
	require.NotNil(t, flash)

	w = ts.do(t, http.MethodGet, "/student/portal", nil, flash)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[api.StudentClaimsResponse](t, w)
	require.NotNil(t, resp.Flash)
	assert.Equal(t, "success", resp.Flash.Category)
	assert.Contains(t, resp.Flash.Message, "Claim submitted successfully! Tracking ID: #1")
	require.Len(t, resp.Claims, 1)

	// Validation errors come back as a danger flash.
	fields := aliceForm()
	fields["course_code"] = ""
	body, ct = claimForm(t, fields, "", nil)
	w = ts.postForm(t, body, ct, false)
	require.Equal(t, http.StatusSeeOther, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == flashCookieName {
			flash = c
		}
	}
	w = ts.do(t, http.MethodGet, "/student/claims", nil, flash)
	resp = decode[api.StudentClaimsResponse](t, w)
	require.NotNil(t, resp.Flash)
	assert.Equal(t, "danger", resp.Flash.Category)
	assert.Equal(t, "Please fill in all required fields", resp.Flash.Message)
}

func TestStudentClaims_FilteredByWallet(t *testing.T) {
	ts := newTestServer(t)
	ts.submitClaim(t, aliceWallet)
	ts.submitClaim(t, bobWallet)
	ts.submitClaim(t, "")

	w := ts.do(t, http.MethodGet, "/student/claims", nil)
	assert.Len(t, decode[api.StudentClaimsResponse](t, w).Claims, 3)

	w = ts.do(t, http.MethodGet, "/student/claims", nil, ts.connect(t, bobWallet))
	resp := decode[api.StudentClaimsResponse](t, w)
	assert.Equal(t, bobWallet, resp.Wallet)
	require.Len(t, resp.Claims, 1)
	assert.Equal(t, int64(2), resp.Claims[0].ID)
}

func TestStudentClaims_AnonymousListingHidesPersonalFields(t *testing.T) {
	ts := newTestServer(t)
	ts.submitClaim(t, aliceWallet)
	ts.submitClaim(t, "")

	w := ts.do(t, http.MethodGet, "/student/claims", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Alice")
	assert.NotContains(t, w.Body.String(), "alice@x.com")

	resp := decode[api.StudentClaimsResponse](t, w)
	assert.Empty(t, resp.Wallet)
	require.Len(t, resp.Claims, 2)
	for _, c := range resp.Claims {
		assert.Empty(t, c.StudentName)
		assert.Empty(t, c.Description)
		assert.Empty(t, c.WalletAddress)
		assert.Equal(t, interfaces.StatusPending, c.Status)
		assert.NotEmpty(t, c.CourseCode)
	}

	w = ts.do(t, http.MethodGet, "/student/claims", nil, ts.connect(t, aliceWallet))
	resp = decode[api.StudentClaimsResponse](t, w)
	require.Len(t, resp.Claims, 1)
	assert.NotEmpty(t, resp.Claims[0].StudentName)
	assert.Equal(t, aliceWallet, resp.Claims[0].WalletAddress)
}
