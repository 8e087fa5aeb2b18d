package crypto

import (
	"crypto/rc4"
	"encoding/base64"
	"fmt"
)

// DecryptRC4 decodes base64 ciphertext and runs it through RC4 with key.
func DecryptRC4(ciphertext, key string) (string, error) {
	data, err := DecodeBase64(ciphertext)
	if err != nil {
		return "", fmt.Errorf("base64: %w", err)
	}
	c, err := rc4.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("invalid key: %w", err)
	}
	c.XORKeyStream(data, data)
	return string(data), nil
}

// EncryptRC4 is the inverse of DecryptRC4, emitting standard base64.
func EncryptRC4(plain, key string) (string, error) {
	c, err := rc4.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("invalid key: %w", err)
	}
	out := []byte(plain)
	c.XORKeyStream(out, out)
	return base64.StdEncoding.EncodeToString(out), nil
}
