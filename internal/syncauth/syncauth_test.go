// FilePath: internal/syncauth/syncauth_test.go
package syncauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef"

func TestSignVerifyRoundtrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"camera_uuid":"abc","file_size":42}`)

	sig := Sign(testKey, now, payload)
	assert.True(t, Verify(testKey, now, payload, sig))
}

func TestVerifyClockSkewWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"id":1}`)
	sig := Sign(testKey, now, payload)

	cases := []struct {
		name    string
		skew    time.Duration
		expects bool
	}{
		{"same bucket", 0, true},
		{"server one bucket ahead", 5 * time.Minute, true},
		{"server one bucket behind", -5 * time.Minute, true},
		{"slow upload four buckets", 4 * 5 * time.Minute, true},
		{"five buckets stale", 5 * 5 * time.Minute, false},
		{"two buckets forward", -2 * 5 * time.Minute, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// The signer stays at now; the verifier's clock drifts.
			serverNow := now.Add(tc.skew)
			// Align to bucket starts so the offsets are exact.
			serverNow = time.Unix(serverNow.Unix()-serverNow.Unix()%300, 0)
			got := Verify(testKey, serverNow, payload, sig)
			assert.Equal(t, tc.expects, got)
		})
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"file_size":100}`)
	sig := Sign(testKey, now, payload)

	assert.False(t, Verify(testKey, now, []byte(`{"file_size":999}`), sig))
	assert.False(t, Verify("wrongkey", now, payload, sig))
	assert.False(t, Verify(testKey, now, payload, "zzzz not hex"))
	assert.False(t, Verify(testKey, now, payload, ""))
}

func TestHeaderRoundtrip(t *testing.T) {
	header := Header("observatory", "deadbeef")
	assert.Equal(t, "Bearer observatory:deadbeef", header)

	username, sig, err := ParseHeader(header)
	require.NoError(t, err)
	assert.Equal(t, "observatory", username)
	assert.Equal(t, "deadbeef", sig)
}

func TestParseHeaderRejectsMalformed(t *testing.T) {
	for _, header := range []string{
		"",
		"Bearer",
		"Bearer nosig",
		"Bearer :sigonly",
		"Bearer user:",
		"Basic user:sig",
	} {
		_, _, err := ParseHeader(header)
		assert.Error(t, err, "header %q", header)
	}
}
