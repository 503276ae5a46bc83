// Package auth provee un ports.SessionVerifier de referencia. Verificar
// una firma EIP-4361 completa (parseo estricto del mensaje SIWE,
// comprobación de dominio/chainId/expiración, recuperación secp256k1 de
// la dirección) está fuera del alcance de este núcleo — el stub recupera
// la dirección sólo a partir de la firma vía go-ethereum, sin validar el
// resto de los campos del mensaje SIWE. Un desplegamiento real sustituye
// este adapter por uno que sí aplique esas comprobaciones.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alejandrodnm/polybacker/internal/ports"
)

// SIWEStub implementa ports.SessionVerifier recuperando la dirección que
// produjo la firma ECDSA sobre el hash prefijado "\x19Ethereum Signed
// Message:\n" + len(message) + message, sin más validación del mensaje.
type SIWEStub struct{}

// NewSIWEStub crea el verificador de referencia.
func NewSIWEStub() SIWEStub { return SIWEStub{} }

// Verify recupera la dirección firmante. No comprueba caducidad, dominio,
// ni que el nonce incluido en msg.Message sea el esperado — eso lo hace
// el handler HTTP contra Store.ConsumeNonce.
func (SIWEStub) Verify(ctx context.Context, msg ports.SIWEMessage) (string, error) {
	sig, err := hexutil.Decode(msg.Signature)
	if err != nil {
		return "", fmt.Errorf("auth.Verify: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("auth.Verify: signature must be 65 bytes, got %d", len(sig))
	}
	// go-ethereum espera v ∈ {0,1}; wallets suelen firmar con v ∈ {27,28}.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := signHash([]byte(msg.Message))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("auth.Verify: recover pubkey: %w", err)
	}

	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

func signHash(data []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}
