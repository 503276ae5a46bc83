package ports

import "context"

// SIWEMessage es el mensaje EIP-4361 firmado por el cliente al verificar
// una sesión.
type SIWEMessage struct {
	Message   string
	Signature string
}

// SessionVerifier resuelve un mensaje SIWE firmado a la dirección que lo
// firmó. La verificación de firma EIP-4361 completa (parseo del mensaje,
// comprobación de dominio/chainId, recuperación de la clave pública) es
// responsabilidad de un colaborador externo al núcleo — aquí sólo se
// define el contrato que /api/auth/verify necesita.
type SessionVerifier interface {
	// Verify comprueba que msg está correctamente firmado y devuelve la
	// dirección recuperada. No consulta el nonce ni la whitelist — eso
	// es responsabilidad del handler HTTP, vía Store.
	Verify(ctx context.Context, msg SIWEMessage) (address string, err error)
}
