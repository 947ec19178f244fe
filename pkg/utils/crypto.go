package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrEmptySecret        = errors.New("secret key is empty")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return aead, nil
}

// Encrypt seals plaintext with AES-GCM and returns base64(nonce || ciphertext).
// The empty string stays empty so "not set" survives a round trip.
func Encrypt(plaintext string, key []byte) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func Decrypt(encoded string, key []byte) (string, error) {
	if encoded == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	if len(data) < aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return string(plaintext), nil
}

// Mask keeps the last four characters of a secret for display.
func Mask(secret string) string {
	const visible = 4
	if secret == "" {
		return ""
	}
	r := []rune(secret)
	if len(r) <= visible {
		return "****"
	}
	return "****" + string(r[len(r)-visible:])
}

// DeriveKey expands secret into a 32-byte AES-256 key bound to purpose, so
// SECRET_KEY can sign sessions and encrypt credentials without sharing a key.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose)), key); err != nil {
		return nil, err
	}
	return key, nil
}
