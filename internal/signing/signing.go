// Package signing implements the HMAC helper behind the signed status links
// embedded in client receipt emails.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Signer generates and validates HMAC based signatures over a reference id
// and expiry pair.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature for a reference id and unix expiry.
func (s *Signer) Sign(ref string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	payload := fmt.Sprintf("%s:%d", ref, expiresUnix)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate checks a signature and rejects expired links.
func (s *Signer) Validate(ref, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if time.Now().Unix() > exp {
		return false
	}
	expected := s.Sign(ref, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// StatusLink renders the signed status URL for a reference.
func (s *Signer) StatusLink(baseURL, ref string, ttl time.Duration) string {
	exp := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s?ref=%s&expires=%d&sig=%s", baseURL, ref, exp, s.Sign(ref, exp))
}
