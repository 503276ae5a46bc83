package domain

import "time"

// Role es el nivel de privilegio de un User dentro del sistema.
type Role string

const (
	RoleOwner Role = "owner"
	RoleUser  Role = "user"
)

// User es una wallet autenticada vía SIWE. La verificación de firma en sí
// es responsabilidad de un colaborador externo (ports.SessionVerifier);
// el Store sólo conserva el perfil y el último login.
type User struct {
	Address     string
	Role        Role
	DisplayName string
	CreatedAt   time.Time
	LastLogin   *time.Time
}

// Nonce es el reto SIWE pendiente de verificación para una dirección.
type Nonce struct {
	Value     string
	Address   string
	CreatedAt time.Time
	Consumed  bool
}

// WhitelistEntry es una dirección autorizada a usar el sistema.
type WhitelistEntry struct {
	Address string
	AddedAt time.Time
	AddedBy string
}

// APICredentials son las credenciales L1/L2 de Polymarket de un usuario,
// cifradas en reposo por el adapter de storage (AES-GCM).
type APICredentials struct {
	UserAddress string
	APIKey      string
	APISecret   string
	APIPassphrase string
	UpdatedAt   time.Time
}

// Preferences es un blob JSON de preferencias de usuario de interpretación
// libre para la capa de aplicación (p.ej. alias de traders, tema de UI).
type Preferences struct {
	UserAddress string
	Data        map[string]any
}
