package storage

// auth_store.go — preferencias de usuario y credenciales L1/L2 de
// Polymarket. api_secret se cifra en reposo con AES-256-GCM: no hay
// ninguna librería de cifrado de terceros en el stack de este proyecto, así
// que se usa crypto/aes + crypto/cipher de la stdlib — el único punto del
// adapter de storage que no se apoya en una dependencia externa.

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

func (s *SQLiteStorage) GetPreferences(ctx context.Context, userAddress string) (domain.Preferences, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM preferences WHERE user_address = ?`, userAddress).Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.Preferences{UserAddress: userAddress, Data: map[string]any{}}, nil
	}
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("storage.GetPreferences: %w", err)
	}
	data := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return domain.Preferences{}, fmt.Errorf("storage.GetPreferences: decode: %w", err)
	}
	return domain.Preferences{UserAddress: userAddress, Data: data}, nil
}

// MergePreferences fusiona patch sobre las preferencias existentes del
// usuario (las claves de patch sobrescriben, el resto se conserva) y
// persiste el resultado como JSON.
func (s *SQLiteStorage) MergePreferences(ctx context.Context, userAddress string, patch map[string]any) error {
	current, err := s.GetPreferences(ctx, userAddress)
	if err != nil {
		return err
	}
	if current.Data == nil {
		current.Data = map[string]any{}
	}
	for k, v := range patch {
		current.Data[k] = v
	}
	encoded, err := json.Marshal(current.Data)
	if err != nil {
		return fmt.Errorf("storage.MergePreferences: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_address, data) VALUES (?, ?)
		ON CONFLICT(user_address) DO UPDATE SET data = excluded.data
	`, userAddress, string(encoded))
	if err != nil {
		return fmt.Errorf("storage.MergePreferences: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetCreds(ctx context.Context, userAddress string) (domain.APICredentials, bool, error) {
	var c domain.APICredentials
	var encSecret, nonce []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT user_address, api_key, api_secret, api_secret_nonce, api_passphrase, updated_at
		FROM api_credentials WHERE user_address = ?
	`, userAddress).Scan(&c.UserAddress, &c.APIKey, &encSecret, &nonce, &c.APIPassphrase, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.APICredentials{}, false, nil
	}
	if err != nil {
		return domain.APICredentials{}, false, fmt.Errorf("storage.GetCreds: %w", err)
	}

	secret, err := s.decryptSecret(encSecret, nonce)
	if err != nil {
		return domain.APICredentials{}, false, fmt.Errorf("storage.GetCreds: decrypt: %w", err)
	}
	c.APISecret = secret
	return c, true, nil
}

func (s *SQLiteStorage) SaveCreds(ctx context.Context, creds domain.APICredentials) error {
	encSecret, nonce, err := s.encryptSecret(creds.APISecret)
	if err != nil {
		return fmt.Errorf("storage.SaveCreds: encrypt: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_credentials (user_address, api_key, api_secret, api_secret_nonce, api_passphrase, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_address) DO UPDATE SET
			api_key = excluded.api_key, api_secret = excluded.api_secret,
			api_secret_nonce = excluded.api_secret_nonce, api_passphrase = excluded.api_passphrase,
			updated_at = excluded.updated_at
	`, creds.UserAddress, creds.APIKey, encSecret, nonce, creds.APIPassphrase, now)
	if err != nil {
		return fmt.Errorf("storage.SaveCreds: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteCreds(ctx context.Context, userAddress string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM api_credentials WHERE user_address = ?`, userAddress)
	if err != nil {
		return fmt.Errorf("storage.DeleteCreds: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) encryptSecret(plaintext string) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(s.secretKey[:])
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	return gcm.Seal(nil, nonce, []byte(plaintext), nil), nonce, nil
}

func (s *SQLiteStorage) decryptSecret(ciphertext, nonce []byte) (string, error) {
	block, err := aes.NewCipher(s.secretKey[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
