package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testSecret = []byte("It's a Secret to Everybody")
	testBody   = []byte("Hello, World!")
)

// TestVerifySignature_GitHubVector verifies the example from GitHub's webhook docs
func TestVerifySignature_GitHubVector(t *testing.T) {
	header := "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17"
	assert.True(t, VerifySignature(testSecret, testBody, header))
	assert.Equal(t, header, Sign(testSecret, testBody))
}

// TestVerifySignature_FlippedBodyByte verifies any body change breaks the signature
func TestVerifySignature_FlippedBodyByte(t *testing.T) {
	header := Sign(testSecret, testBody)
	for i := range testBody {
		body := append([]byte(nil), testBody...)
		body[i] ^= 0x01
		assert.False(t, VerifySignature(testSecret, body, header), "byte %d", i)
	}
}

// TestVerifySignature_FlippedDigestChar verifies any digest change breaks the signature
func TestVerifySignature_FlippedDigestChar(t *testing.T) {
	header := Sign(testSecret, testBody)
	for i := len(signaturePrefix); i < len(header); i++ {
		altered := []byte(header)
		altered[i] ^= 0x01
		assert.False(t, VerifySignature(testSecret, testBody, string(altered)), "char %d", i)
	}
}

// TestVerifySignature_RejectsOtherSchemes verifies only sha256= is accepted
func TestVerifySignature_RejectsOtherSchemes(t *testing.T) {
	header := Sign(testSecret, testBody)
	digest := header[len(signaturePrefix):]

	assert.False(t, VerifySignature(testSecret, testBody, digest))
	assert.False(t, VerifySignature(testSecret, testBody, "sha1="+digest))
	assert.False(t, VerifySignature(testSecret, testBody, "SHA256="+digest))
	assert.False(t, VerifySignature(testSecret, testBody, "sha256="))
	assert.False(t, VerifySignature(testSecret, testBody, ""))
}

// TestVerifySignature_EmptySecret verifies an unconfigured secret never verifies
func TestVerifySignature_EmptySecret(t *testing.T) {
	assert.False(t, VerifySignature(nil, testBody, Sign(nil, testBody)))
}
