package source

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature reports whether header is a valid X-Hub-Signature-256 value
// for payload. The digest is computed over the raw body bytes and compared in
// constant time. An empty secret never verifies.
func VerifySignature(secret, payload []byte, header string) bool {
	if len(secret) == 0 {
		return false
	}
	digest, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok || digest == "" {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	// GitHub sends lower-case hex; comparing the encoded form rejects any
	// altered character, including a case change.
	return hmac.Equal([]byte(digest), []byte(expected))
}

// Sign returns the X-Hub-Signature-256 header value for payload
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
