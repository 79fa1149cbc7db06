package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

const keySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Cipher seals payloads with AES-256-GCM under one long-lived key.
type Cipher struct {
	aead cipher.AEAD
}

// LoadOrCreateKey resolves the key from envKey (hex), then keyPath, and otherwise
// generates a new one and persists it to keyPath. generated is true in the last case.
func LoadOrCreateKey(envKey, keyPath string) (key []byte, generated bool, err error) {
	if envKey != "" {
		key, err := hex.DecodeString(strings.TrimSpace(envKey))
		if err != nil || len(key) != keySize {
			return nil, false, fmt.Errorf("ENCRYPTION_KEY must be %d hex-encoded bytes", keySize)
		}
		return key, false, nil
	}

	if data, err := os.ReadFile(keyPath); err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != keySize {
			return nil, false, fmt.Errorf("key file %s does not hold a %d byte hex key", keyPath, keySize)
		}
		return key, false, nil
	} else if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("failed to read key file: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random key: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, false, fmt.Errorf("failed to save encryption key to %s: %w", keyPath, err)
	}
	log.Warn().Str("file", keyPath).Msg("Generated new encryption key; keep this file, stored incidents cannot be read without it")
	return key, true, nil
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt returns nonce + ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}

// EncryptJSON marshals v and returns the sealed bytes base64 encoded, ready to be
// stored as a document field.
func (c *Cipher) EncryptJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	sealed, err := c.Encrypt(data)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) DecryptJSON(encoded string, v interface{}) error {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	data, err := c.Decrypt(sealed)
	if err != nil {
		return fmt.Errorf("decrypt payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
