// Package signing produces the HMAC signatures carried by authenticated OKX
// requests.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// TimestampLayout is the ISO-8601 form OKX expects in OK-ACCESS-TIMESTAMP:
// UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Sign returns base64(HMAC-SHA256(secret, timestamp+method+path+body)).
// An absent body is passed as "".
func Sign(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Timestamp formats t in TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
