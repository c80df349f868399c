package bridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Callback request headers.
const (
	KeyHeader       = "X-Bridge-Key"
	SignatureHeader = "X-Bridge-Signature"
)

var errSignature = errors.New("signature verification failed")

// Sign returns "sha256=<hex hmac>" of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign. The plain hex form
// without the "sha256=" prefix is also accepted. Errors are generic.
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return errSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return errSignature
	}
	return nil
}
