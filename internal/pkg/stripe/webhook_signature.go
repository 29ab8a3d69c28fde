package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed webhook timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks the provider's signature header against the
// raw, unparsed request body. The header carries `t=<unix>,v1=<hex hmac>`
// pairs; the signed payload is `<t>.<body>` under HMAC-SHA256 of the shared
// secret. A non-positive tolerance disables the timestamp check.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration) bool {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return false
	}

	timestamp, signatures := parseSignatureHeader(signatureHeader)
	if timestamp == 0 || len(signatures) == 0 {
		return false
	}
	if tolerance > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return false
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return true
		}
	}
	return false
}

func parseSignatureHeader(header string) (int64, []string) {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err == nil {
				timestamp = ts
			}
		case "v1":
			signatures = append(signatures, strings.ToLower(kv[1]))
		}
	}
	return timestamp, signatures
}
