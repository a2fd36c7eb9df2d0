package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the HMAC-SHA256 signature of a webhook payload
// against the shared secret. The signature header carries
// "sha256=<hex-encoded-hmac>" computed over the exact raw request bytes.
//
// An empty secret accepts any payload unconditionally: repositories without
// a configured secret receive unsigned deliveries and the permissive
// default is long-standing documented behavior. A configured secret with a
// missing or malformed signature fails verification rather than erroring.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}

	if signature == "" || !strings.HasPrefix(signature, "sha256=") {
		return false
	}

	received, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	// hmac.Equal is constant time with respect to the secret-derived value.
	return hmac.Equal(received, mac.Sum(nil))
}
