package signing

import (
	"strconv"
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	exp := time.Now().Add(time.Hour).Unix()
	expStr := strconv.FormatInt(exp, 10)
	sig := s.Sign("TL-1234", exp)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	if !s.Validate("TL-1234", expStr, sig) {
		t.Fatalf("expected signature to validate")
	}
	if s.Validate("TL-9999", expStr, sig) {
		t.Fatalf("expected validation to fail for wrong ref")
	}
	if s.Validate("TL-1234", "42", sig) {
		t.Fatalf("expected validation to fail for tampered expiry")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	past := time.Now().Add(-time.Minute).Unix()
	sig := s.Sign("TL-1234", past)
	if s.Validate("TL-1234", strconv.FormatInt(past, 10), sig) {
		t.Fatalf("expected expired link to be rejected")
	}
}
