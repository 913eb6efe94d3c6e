// FilePath: internal/syncauth/syncauth.go

// Package syncauth implements the shared-key request signing used by
// the sync API. The signature is an HMAC-SHA3-512 over the current
// 5-minute time bucket concatenated with the raw metadata bytes, so a
// captured request replays for at most a few buckets and clock skew of
// a few minutes either way still verifies.
package syncauth

import (
	"crypto/hmac"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// bucketSeconds is the width of one signing window.
const bucketSeconds = 300

// candidateOffsets are the time buckets a signature is checked
// against: the current bucket, one bucket of forward skew, and up to
// four buckets back to cover slow uploads on the sender side.
var candidateOffsets = []int64{0, -1, 1, -2, -3, -4}

// Sign computes the hex signature for payload at the given time.
func Sign(apiKey string, now time.Time, payload []byte) string {
	bucket := now.Unix() / bucketSeconds
	return signBucket(apiKey, bucket, payload)
}

func signBucket(apiKey string, bucket int64, payload []byte) string {
	mac := hmac.New(sha3.New512, []byte(apiKey))
	mac.Write([]byte(strconv.FormatInt(bucket, 10)))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload in any candidate
// time bucket around now. Comparison is constant time per candidate.
func Verify(apiKey string, now time.Time, payload []byte, signature string) bool {
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	bucket := now.Unix() / bucketSeconds
	for _, offset := range candidateOffsets {
		candidate, err := hex.DecodeString(signBucket(apiKey, bucket+offset, payload))
		if err != nil {
			continue
		}
		if hmac.Equal(sigBytes, candidate) {
			return true
		}
	}
	return false
}

// Header formats the Authorization header value for a signed request.
func Header(username, signature string) string {
	return fmt.Sprintf("Bearer %s:%s", username, signature)
}

// ParseHeader splits an Authorization header into username and
// signature. The scheme must be Bearer.
func ParseHeader(header string) (username, signature string, err error) {
	value, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", "", fmt.Errorf("authorization scheme must be Bearer")
	}

	username, signature, ok = strings.Cut(value, ":")
	if !ok || username == "" || signature == "" {
		return "", "", fmt.Errorf("malformed authorization token")
	}
	return username, signature, nil
}
