// Package cipher encrypts stored fields with AES-256-GCM.
//
// Encrypted values are kept as "nonce,ciphertext,tag" with each part base64 encoded.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrMalformed = errors.New("cipher: malformed encrypted value")

// Cipher 字段加解密
type Cipher struct {
	aead cipher.AEAD
}

// New 使用 base64 编码的 32 字节密钥创建
func New(base64Key string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("cipher: decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt 加密明文
func (c *Cipher) Encrypt(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cipher: nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plain), nil)
	tagStart := len(sealed) - c.aead.Overhead()

	enc := base64.StdEncoding
	return strings.Join([]string{
		enc.EncodeToString(nonce),
		enc.EncodeToString(sealed[:tagStart]),
		enc.EncodeToString(sealed[tagStart:]),
	}, ","), nil
}

// Decrypt 解密并校验
func (c *Cipher) Decrypt(value string) (string, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return "", ErrMalformed
	}
	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrMalformed
	}
	ct, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformed
	}
	tag, err := enc.DecodeString(parts[2])
	if err != nil || len(tag) != c.aead.Overhead() {
		return "", ErrMalformed
	}

	plain, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("cipher: open: %w", err)
	}
	return string(plain), nil
}
