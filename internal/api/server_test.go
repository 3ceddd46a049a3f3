package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxlakay/taxdrop/internal/address"
	"github.com/taxlakay/taxdrop/internal/config"
	"github.com/taxlakay/taxdrop/internal/ledger"
)

type stubProvider struct {
	candidate *address.Candidate
	err       error
}

func (s *stubProvider) Lookup(_ context.Context, _ *address.ParsedAddress) (*address.Candidate, error) {
	return s.candidate, s.err
}

func newTestServer(provider address.Provider) *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(
		&config.Config{AllowOrigin: "*"},
		address.NewReconciler(provider),
		ledger.New(ledger.NewMemoryStore(), "topsecret"),
		nil, nil, nil,
		log,
	)
}

func TestVerifyAddressEndpoint(t *testing.T) {
	s := newTestServer(&stubProvider{candidate: &address.Candidate{
		Street: "929 GILMORE AVE",
		City:   "LAKELAND",
		State:  "FL",
		Zip5:   "33801",
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/verify-address",
		strings.NewReader(`{"address":"929 Gilmore Ave, Lakeland, FL 33801"}`))
	rec := httptest.NewRecorder()
	s.handleVerifyAddress(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res address.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.OK)
	assert.True(t, res.Found)
	assert.False(t, res.ShowBox)
	assert.Equal(t, "929 Gilmore Ave\nLakeland FL 33801", res.EnteredLine)
}

func TestVerifyAddressMissingBody(t *testing.T) {
	s := newTestServer(&stubProvider{})
	req := httptest.NewRequest(http.MethodPost, "/api/verify-address", strings.NewReader(`{"address":"  "}`))
	rec := httptest.NewRecorder()
	s.handleVerifyAddress(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var res address.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.OK)
	assert.True(t, res.ShowBox)
}

func TestProgressLifecycle(t *testing.T) {
	s := newTestServer(nil)

	// Unknown ref: found:false, still a 200.
	req := httptest.NewRequest(http.MethodGet, "/api/progress?ref=tl-77", nil)
	rec := httptest.NewRecorder()
	s.handleProgress(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var lookup map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lookup))
	assert.Equal(t, true, lookup["ok"])
	assert.Equal(t, false, lookup["found"])

	// Admin writes a stage.
	body := strings.NewReader(`{"ref":"tl-77","stage":"In Progress","note":"W-2 received"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/admin/progress", body)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec = httptest.NewRecorder()
	s.handleAdminProgress(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var wrote map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wrote))
	assert.Equal(t, "TL-77", wrote["ref"])
	assert.Equal(t, "In Progress", wrote["status"])

	// Lookup with different casing sees the write.
	req = httptest.NewRequest(http.MethodGet, "/api/progress?ref=TL-77", nil)
	rec = httptest.NewRecorder()
	s.handleProgress(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lookup))
	assert.Equal(t, true, lookup["found"])
	assert.Equal(t, "In Progress", lookup["status"])
	assert.Equal(t, "W-2 received", lookup["note"])
}

func TestAdminProgressRejections(t *testing.T) {
	s := newTestServer(nil)

	// Wrong token.
	req := httptest.NewRequest(http.MethodPost, "/api/admin/progress",
		strings.NewReader(`{"ref":"tl-77","stage":"In Progress"}`))
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	s.handleAdminProgress(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Missing header.
	req = httptest.NewRequest(http.MethodPost, "/api/admin/progress",
		strings.NewReader(`{"ref":"tl-77","stage":"In Progress"}`))
	rec = httptest.NewRecorder()
	s.handleAdminProgress(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown stage.
	req = httptest.NewRequest(http.MethodPost, "/api/admin/progress",
		strings.NewReader(`{"ref":"tl-77","stage":"Shipped"}`))
	req.Header.Set("Authorization", "Bearer topsecret")
	rec = httptest.NewRecorder()
	s.handleAdminProgress(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing leaked into the ledger.
	req = httptest.NewRequest(http.MethodGet, "/api/progress?ref=tl-77", nil)
	rec = httptest.NewRecorder()
	s.handleProgress(rec, req)
	var lookup map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lookup))
	assert.Equal(t, false, lookup["found"])
}
