package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"media-source-go/pkg/textscan"
)

// CipherSpec describes a site's AES-CBC scheme. The key is fixed per site;
// the IV is either fixed or read from a quoted page token named by IVMarker.
type CipherSpec struct {
	Key      string
	IV       string
	IVMarker string
}

// IVFrom returns the IV for page: the static IV when set, otherwise the
// literal that follows IVMarker.
func (c CipherSpec) IVFrom(page string) (string, error) {
	if c.IV != "" {
		return c.IV, nil
	}
	if c.IVMarker == "" {
		return "", errors.New("cipher spec has neither IV nor IV marker")
	}
	iv, ok := textscan.QuotedAfter(page, c.IVMarker)
	if !ok {
		return "", fmt.Errorf("iv token %q not found", c.IVMarker)
	}
	return iv, nil
}

// Decrypt decrypts a base64 ciphertext with the cipher key and the given IV.
func (c CipherSpec) Decrypt(ciphertext, iv string) (string, error) {
	return DecryptCBCString(ciphertext, c.Key, iv)
}

// DecryptCBCString decrypts base64 AES-CBC/PKCS5 ciphertext with string key and IV.
func DecryptCBCString(ciphertext, key, iv string) (string, error) {
	out, err := DecryptCBC(ciphertext, []byte(key), []byte(iv))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecryptCBC decrypts base64 AES-CBC ciphertext and strips PKCS#5/7 padding.
func DecryptCBC(ciphertext string, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid iv length %d", len(iv))
	}

	data, err := DecodeBase64(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("ciphertext is not base64: %w", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(data))
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return pkcs7Unpad(out, aes.BlockSize)
}

// EncryptCBC encrypts plaintext with AES-CBC/PKCS#7 and returns base64.
func EncryptCBC(plaintext, key, iv []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("invalid key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("invalid iv length %d", len(iv))
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

// DecodeBase64 accepts standard or URL-safe base64, padded or not.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		out, err := enc.DecodeString(s)
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
