package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Field sets for the canonical signature string. Each list is fixed and
// alphabetical; both ends must reproduce the exact same ordering or the
// digests diverge.
var (
	CreateFields = []string{
		"amount", "autoCapture", "extraData", "ipnUrl", "lang", "orderId",
		"orderInfo", "partnerCode", "redirectUrl", "requestId", "requestType",
	}

	// The webhook and return channels carry the same logical fields but are
	// signed with different secrets.
	CallbackFields = []string{
		"amount", "extraData", "message", "orderId", "orderInfo", "orderType",
		"partnerCode", "payType", "requestId", "responseTime", "resultCode",
		"transId",
	}

	QueryFields = []string{"lang", "orderId", "partnerCode", "requestId"}
)

// Sign computes the hex HMAC-SHA256 over "k1=v1&k2=v2&..." for the given
// field set. Keys absent from fields contribute an empty value rather than
// being omitted, keeping the canonical string shape stable across payload
// variants.
func Sign(secret string, fields map[string]string, fieldSet []string) string {
	var b strings.Builder
	for i, key := range fieldSet {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(fields[key])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest and compares with hmac.Equal.
func Verify(secret string, fields map[string]string, fieldSet []string, provided string) bool {
	expected := Sign(secret, fields, fieldSet)
	return hmac.Equal([]byte(expected), []byte(provided))
}
