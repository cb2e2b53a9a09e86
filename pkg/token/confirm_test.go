package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfirmSignerRoundTrip(t *testing.T) {
	signer := NewConfirmSigner("secret", time.Minute)

	raw, expiresAt, err := signer.Generate(10, 20, 30)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	require.NoError(t, signer.Verify(raw, 10, 20, 30))
}

func TestConfirmSignerRejectsMismatchedChild(t *testing.T) {
	signer := NewConfirmSigner("secret", time.Minute)

	raw, _, err := signer.Generate(10, 20, 30)
	require.NoError(t, err)

	require.Error(t, signer.Verify(raw, 10, 20, 31))
}

func TestConfirmSignerRejectsTamperedSignature(t *testing.T) {
	signer := NewConfirmSigner("secret", time.Minute)
	other := NewConfirmSigner("different", time.Minute)

	raw, _, err := other.Generate(10, 20, 30)
	require.NoError(t, err)

	require.Error(t, signer.Verify(raw, 10, 20, 30))
}

func TestConfirmSignerRequiresSecret(t *testing.T) {
	signer := NewConfirmSigner("", time.Minute)

	_, _, err := signer.Generate(1, 2, 3)
	require.Error(t, err)
}
