package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// EncryptionService handles AES-256-GCM sealing of stored documents
type EncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService creates a new service with the provided key (must be 32 bytes/chars)
func NewEncryptionService(keyStr string) (*EncryptionService, error) {
	if len(keyStr) < 32 {
		return nil, errors.New("key must be at least 32 characters")
	}
	// Use exactly first 32 bytes for AES-256
	block, err := aes.NewCipher([]byte(keyStr)[:32])
	if err != nil {
		return nil, err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{aead: aesGCM}, nil
}

// Seal encrypts plaintext and prefixes the random nonce.
func (s *EncryptionService) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s *EncryptionService) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	return s.aead.Open(nil, nonce, ciphertext, nil)
}
