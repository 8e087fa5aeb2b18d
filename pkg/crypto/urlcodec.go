package crypto

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Encrypt modes carried by MacCMS player config blobs.
const (
	ModePlain   = "0"
	ModeEscaped = "1"
	ModeBase64  = "2"
)

// DecodePlayerURL decodes a player config url according to its encrypt mode:
// "1" is percent-unescaped, "2" is base64-decoded then percent-unescaped,
// anything else is returned as-is.
func DecodePlayerURL(raw, mode string) (string, error) {
	switch strings.TrimSpace(mode) {
	case ModeEscaped:
		return Unescape(raw)
	case ModeBase64:
		b, err := DecodeBase64(raw)
		if err != nil {
			return "", fmt.Errorf("base64 decode: %w", err)
		}
		return Unescape(string(b))
	default:
		return raw, nil
	}
}

// Unescape reverses browser-style escape(): %XX byte escapes and %uXXXX
// code-point escapes. Plus signs are left untouched.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			sb.WriteByte(s[i])
			continue
		}
		if i+5 < len(s) && (s[i+1] == 'u' || s[i+1] == 'U') {
			r, err := strconv.ParseUint(s[i+2:i+6], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad escape at %d: %w", i, err)
			}
			if utf8.ValidRune(rune(r)) {
				sb.WriteRune(rune(r))
				i += 5
				continue
			}
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape at %d", i)
		}
		b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape at %d: %w", i, err)
		}
		sb.WriteByte(byte(b))
		i += 2
	}
	return sb.String(), nil
}
