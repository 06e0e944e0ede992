package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func testListener(secret string) *Listener {
	return &Listener{secret: secret, jitter: func() {}}
}

func TestVerify_AcceptsValidSignature(t *testing.T) {
	l := testListener("topsecret")
	body := []byte(`{"ref":"refs/heads/main"}`)

	assert.NoError(t, l.Verify(signBody("topsecret", body), body))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	l := testListener("topsecret")
	body := []byte(`{"ref":"refs/heads/main"}`)

	err := l.Verify(signBody("other", body), body)
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	l := testListener("topsecret")
	body := []byte(`{"ref":"refs/heads/main"}`)
	sig := signBody("topsecret", body)

	err := l.Verify(sig, []byte(`{"ref":"refs/heads/evil"}`))
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}

func TestVerify_RejectsMalformedHeader(t *testing.T) {
	l := testListener("topsecret")
	body := []byte(`{}`)

	tests := []struct {
		name      string
		signature string
	}{
		{"empty", ""},
		{"missing prefix", "deadbeef"},
		{"wrong algorithm", "sha1=deadbeef"},
		{"not hex", "sha256=zzzz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Verify(tt.signature, body)
			assert.ErrorIs(t, err, types.ErrUnauthenticated)
		})
	}
}

func TestVerify_RefusesWithoutConfiguredSecret(t *testing.T) {
	l := testListener("")
	body := []byte(`{}`)

	err := l.Verify(signBody("", body), body)
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}

func TestParseBranch(t *testing.T) {
	branch, err := parseBranch([]byte(`{"ref":"refs/heads/main"}`))
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	branch, err = parseBranch([]byte(`{"ref":"refs/heads/feat/nested-name"}`))
	require.NoError(t, err)
	assert.Equal(t, "feat/nested-name", branch)
}

func TestParseBranch_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "push"},
		{"no ref", `{}`},
		{"empty ref", `{"ref":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBranch([]byte(tt.body))
			assert.True(t, types.IsValidationError(err))
		})
	}
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "Build:abc", lockKey(types.KindBuild, "abc"))
}
