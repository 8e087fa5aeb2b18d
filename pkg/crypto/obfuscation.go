package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DecodeReversedHex undoes the "reverse + hex + salt" obfuscation: the input
// is reversed, decoded as hex byte pairs, and a junk segment of saltLen
// characters is removed from the middle at (len-saltLen)/2.
func DecodeReversedHex(s string, saltLen int) (string, error) {
	s = strings.TrimSpace(s)
	if len(s)%2 != 0 {
		return "", fmt.Errorf("odd hex length %d", len(s))
	}
	rev := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		rev[len(s)-1-i] = s[i]
	}
	plain := make([]byte, hex.DecodedLen(len(rev)))
	if _, err := hex.Decode(plain, rev); err != nil {
		return "", fmt.Errorf("hex decode: %w", err)
	}
	if len(plain) < saltLen {
		return "", fmt.Errorf("decoded length %d shorter than salt %d", len(plain), saltLen)
	}
	cut := (len(plain) - saltLen) / 2
	return string(plain[:cut]) + string(plain[cut+saltLen:]), nil
}

// EncodeReversedHex is the inverse of DecodeReversedHex for a given salt.
func EncodeReversedHex(plain, salt string) string {
	cut := len(plain) / 2
	salted := plain[:cut] + salt + plain[cut:]
	enc := []byte(hex.EncodeToString([]byte(salted)))
	for i, j := 0, len(enc)-1; i < j; i, j = i+1, j-1 {
		enc[i], enc[j] = enc[j], enc[i]
	}
	return string(enc)
}

// ShuffledBase64 decodes payloads encoded with a site-specific base64
// alphabet, optionally behind a fixed-length junk prefix.
type ShuffledBase64 struct {
	enc       *base64.Encoding
	prefixLen int
}

// NewShuffledBase64 builds a decoder for a 64-character alphabet.
func NewShuffledBase64(alphabet string, prefixLen int) (*ShuffledBase64, error) {
	if len(alphabet) != 64 {
		return nil, fmt.Errorf("alphabet must have 64 characters, got %d", len(alphabet))
	}
	seen := make(map[byte]bool, 64)
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		if seen[c] || c == '=' || c == '\n' || c == '\r' {
			return nil, fmt.Errorf("invalid alphabet character %q", c)
		}
		seen[c] = true
	}
	return &ShuffledBase64{
		enc:       base64.NewEncoding(alphabet).WithPadding(base64.NoPadding),
		prefixLen: prefixLen,
	}, nil
}

// Decode strips the junk prefix and decodes the remaining 4-character groups.
func (s *ShuffledBase64) Decode(payload string) (string, error) {
	if len(payload) < s.prefixLen {
		return "", errors.New("payload shorter than prefix")
	}
	body := strings.TrimRight(payload[s.prefixLen:], "=")
	out, err := s.enc.DecodeString(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Encode is the inverse of Decode, using prefix as the junk prefix.
func (s *ShuffledBase64) Encode(plain []byte, prefix string) string {
	return prefix + s.enc.EncodeToString(plain)
}
