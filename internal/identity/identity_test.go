package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuerVerifierRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", "chat-dev", time.Hour)
	token, err := issuer.Issue("user-1", "Ada")
	require.NoError(t, err)

	claims, err := NewVerifier("secret", "chat-dev").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
}

func TestVerifierRejects(t *testing.T) {
	good, err := NewIssuer("secret", "chat-dev", time.Hour).Issue("user-1", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *Verifier
		token    string
	}{
		{name: "wrong secret", verifier: NewVerifier("other", ""), token: good},
		{name: "wrong issuer", verifier: NewVerifier("secret", "prod"), token: good},
		{name: "garbage", verifier: NewVerifier("secret", ""), token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifierRejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", "", time.Millisecond)
	token, err := issuer.Issue("user-1", "")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = NewVerifier("secret", "").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRequiresSecretAndUser(t *testing.T) {
	_, err := NewIssuer("", "", time.Hour).Issue("user-1", "")
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewIssuer("secret", "", time.Hour).Issue("  ", "")
	assert.Error(t, err)
}

func TestIssuerSourceMintsFreshTokens(t *testing.T) {
	src := NewIssuer("secret", "", time.Hour).SourceFor("user-1", "")

	first, err := src.Token(context.Background())
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	second, err := src.Token(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "iat should differ between calls")
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	_, err := Static("").Token(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	tok, err := Static(" opaque-token \n").Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", tok)

	expired, err := NewIssuer("secret", "", time.Millisecond).Issue("user-1", "")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = Static(expired).Token(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")

	_, err := File{Path: path}.Token(ctx)
	assert.ErrorIs(t, err, ErrNoSession, "missing file means signed out")

	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0600))
	tok, err := File{Path: path}.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", tok)

	require.NoError(t, os.WriteFile(path, []byte("second"), 0600))
	tok, err = File{Path: path}.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", tok, "file is re-read on every call")
}

func TestExpiresAt(t *testing.T) {
	token, err := NewIssuer("secret", "", time.Hour).Issue("user-1", "")
	require.NoError(t, err)

	exp, ok := ExpiresAt(token)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	_, ok = ExpiresAt("opaque")
	assert.False(t, ok)
}
