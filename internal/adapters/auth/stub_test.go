package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybacker/internal/ports"
)

func signMessage(t *testing.T, keyHex, message string) string {
	t.Helper()
	priv, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)

	sig, err := crypto.Sign(signHash([]byte(message)), priv)
	require.NoError(t, err)
	sig[64] += 27 // la mayoría de wallets firman con v en {27,28}

	return hexutil.Encode(sig)
}

func TestSIWEStub_Verify_RecoversSigner(t *testing.T) {
	const privateKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	priv, err := crypto.HexToECDSA(privateKeyHex)
	require.NoError(t, err)
	wantAddress := strings.ToLower(crypto.PubkeyToAddress(priv.PublicKey).Hex())

	message := "polybacker.example wants you to sign in.\n\nNonce: abc123"
	sig := signMessage(t, privateKeyHex, message)

	v := NewSIWEStub()
	got, err := v.Verify(context.Background(), ports.SIWEMessage{Message: message, Signature: sig})
	require.NoError(t, err)
	require.Equal(t, wantAddress, got)
}

func TestSIWEStub_Verify_RejectsMalformedSignature(t *testing.T) {
	v := NewSIWEStub()
	_, err := v.Verify(context.Background(), ports.SIWEMessage{Message: "msg", Signature: "0xdeadbeef"})
	require.Error(t, err)
}
