package wecom

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sign computes the JS-SDK signature: SHA-1 over the canonical parameter
// string. Field order is fixed by the protocol; the url must be the exact
// canonical page URL the client will present at config time.
func Sign(ticket, nonceStr string, timestamp int64, url string) string {
	raw := fmt.Sprintf("jsapi_ticket=%s&noncestr=%s&timestamp=%d&url=%s",
		ticket, nonceStr, timestamp, url)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// newNonce returns a 16-character random nonce.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
