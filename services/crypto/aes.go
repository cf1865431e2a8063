package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/interfaces"
)

const KeySize = 32

var ErrInvalidKey = errors.New("encryption key must be 32 bytes, raw or base64 encoded")

type aesCrypto struct {
	aead cipher.AEAD
}

// NewAESCrypto returns AES-256-GCM. Ciphertexts are base64url(nonce | sealed).
func NewAESCrypto(key string) (interfaces.Crypto, error) {
	raw, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create gcm")
	}
	return &aesCrypto{aead: aead}, nil
}

func parseKey(key string) ([]byte, error) {
	if len(key) == KeySize {
		return []byte(key), nil
	}
	for _, encoding := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if decoded, err := encoding.DecodeString(key); err == nil && len(decoded) == KeySize {
			return decoded, nil
		}
	}
	return nil, ErrInvalidKey
}

func (c *aesCrypto) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (c *aesCrypto) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "decode ciphertext")
	}

	nonceSize := c.aead.NonceSize()
	if len(decoded) < nonceSize+c.aead.Overhead() {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := c.aead.Open(nil, decoded[:nonceSize], decoded[nonceSize:], nil)
	if err != nil {
		return "", errors.Wrap(err, "decrypt")
	}
	return string(plaintext), nil
}
