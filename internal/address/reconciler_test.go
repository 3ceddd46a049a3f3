package address

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider lets tests script the provider's answer.
type stubProvider struct {
	candidate *Candidate
	err       error
}

func (s *stubProvider) Lookup(_ context.Context, _ *ParsedAddress) (*Candidate, error) {
	return s.candidate, s.err
}

func TestVerifyUnconfigured(t *testing.T) {
	r := NewReconciler(nil)
	res := r.Verify(context.Background(), "  929 Gilmore Ave, Lakeland, FL 33801 ")
	assert.False(t, res.OK)
	assert.False(t, res.Found)
	assert.True(t, res.ShowBox)
	assert.Equal(t, "929 Gilmore Ave, Lakeland, FL 33801", res.EnteredLine)
	assert.NotEmpty(t, res.Message)
}

func TestVerifyUnparseable(t *testing.T) {
	r := NewReconciler(&stubProvider{})
	res := r.Verify(context.Background(), "just some words")
	assert.True(t, res.OK)
	assert.False(t, res.Found)
	assert.True(t, res.ShowBox)
	assert.Equal(t, "just some words", res.EnteredLine)
	assert.Contains(t, res.Message, "Street, City, ST ZIP")
}

func TestVerifyProviderError(t *testing.T) {
	r := NewReconciler(&stubProvider{err: errors.New("usps verify: connection refused")})
	res := r.Verify(context.Background(), "929 Gilmore Ave, Lakeland, FL 33801")
	assert.False(t, res.OK)
	assert.False(t, res.Found)
	assert.True(t, res.ShowBox)
	assert.Equal(t, "929 Gilmore Ave\nLakeland FL 33801", res.EnteredLine)
	assert.Empty(t, res.RecommendedLine)
	assert.Contains(t, res.Message, "connection refused")
}

func TestVerifyNoMatch(t *testing.T) {
	r := NewReconciler(&stubProvider{candidate: &Candidate{Message: "Address Not Found."}})
	res := r.Verify(context.Background(), "929 Gilmore Ave, Lakeland, FL 33801")
	assert.True(t, res.OK)
	assert.False(t, res.Found)
	assert.True(t, res.ShowBox)
	assert.Equal(t, "Address Not Found.", res.Message)
	assert.Empty(t, res.RecommendedLine)
}

func TestVerifyIncompleteCandidateIsNotFound(t *testing.T) {
	// Missing zip5 means the provider was not confident.
	r := NewReconciler(&stubProvider{candidate: &Candidate{Street: "929 GILMORE AVE", City: "LAKELAND", State: "FL"}})
	res := r.Verify(context.Background(), "929 Gilmore Ave, Lakeland, FL 33801")
	assert.True(t, res.OK)
	assert.False(t, res.Found)
	assert.True(t, res.ShowBox)
}

func TestVerifyFoundMatching(t *testing.T) {
	// Raw bytes differ ("Apt. 2" vs "APT 2") but canonical forms agree, so
	// the caller is not prompted.
	r := NewReconciler(&stubProvider{candidate: &Candidate{
		Street: "929 GILMORE AVE APT 2",
		City:   "LAKELAND",
		State:  "FL",
		Zip5:   "33801",
	}})
	res := r.Verify(context.Background(), "929 Gilmore Ave Apt. 2, Lakeland, FL 33801")
	require.True(t, res.OK)
	assert.True(t, res.Found)
	assert.False(t, res.ShowBox)
	assert.Empty(t, res.Message)
	assert.NotEmpty(t, res.RecommendedLine)
}

func TestVerifyFoundDifferent(t *testing.T) {
	r := NewReconciler(&stubProvider{candidate: &Candidate{
		Street: "929 GILMORE AVE N",
		City:   "LAKELAND",
		State:  "FL",
		Zip5:   "33805",
		Zip4:   "2217",
	}})
	res := r.Verify(context.Background(), "929 Gilmore Ave, Lakeland, FL 33801")
	assert.True(t, res.OK)
	assert.True(t, res.Found)
	assert.True(t, res.ShowBox)
	assert.Equal(t, "929 GILMORE AVE N\nLAKELAND FL 33805-2217", res.RecommendedLine)
	assert.NotEmpty(t, res.Message)
}
