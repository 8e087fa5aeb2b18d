package textscan

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNotPacked is returned when no P.A.C.K.E.R payload is present.
var ErrNotPacked = errors.New("no packed script found")

// Unpack finds the first eval(function(p,a,c,k,e,d){...}(...)) call in s,
// bracket-matches its argument list and returns the unpacked script.
func Unpack(s string) (string, error) {
	expr, ok := packedExpr(s)
	if !ok {
		return "", ErrNotPacked
	}
	body, ok := Balanced(expr, 0, '{', '}')
	if !ok {
		return "", errors.New("unterminated packer body")
	}
	rest := strings.TrimSpace(expr[strings.Index(expr, body)+len(body):])
	if !strings.HasPrefix(rest, "(") {
		return "", errors.New("packer arguments not found")
	}
	call, ok := BalancedQuoted(rest, 0, '(', ')')
	if !ok {
		return "", errors.New("unterminated packer arguments")
	}

	args := SplitArgs(call[1 : len(call)-1])
	if len(args) < 4 {
		return "", errors.New("packer expects at least 4 arguments")
	}
	payload, ok := stringLiteral(args[0])
	if !ok {
		return "", errors.New("packer payload is not a string")
	}
	radix, err := strconv.Atoi(args[1])
	if err != nil || radix < 2 || radix > 62 {
		return "", errors.New("invalid packer radix")
	}
	dict, _, ok := QuotedAt(args[3], 0)
	if !ok {
		return "", errors.New("packer dictionary is not a string")
	}

	return substituteWords(UnescapeJS(payload), radix, strings.Split(dict, "|")), nil
}

// packedExpr returns the argument text of the first eval(...) call whose
// argument is a packer function.
func packedExpr(s string) (string, bool) {
	for off := 0; ; {
		idx := strings.Index(s[off:], "eval(")
		if idx < 0 {
			return "", false
		}
		off += idx
		if args, ok := CallArgs(s[off:], "eval"); ok {
			args = strings.TrimSpace(args)
			if strings.HasPrefix(args, "function(p,a,c,k,e,") {
				return args, true
			}
		}
		off += len("eval(")
	}
}

// stringLiteral strips the quotes from a whole argument such as 'a\'b'.
// The packed payload escapes its own quotes, which SplitArgs already
// skipped over, so the literal runs to the last byte.
func stringLiteral(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if len(arg) < 2 || (arg[0] != '\'' && arg[0] != '"') || arg[len(arg)-1] != arg[0] {
		return "", false
	}
	return arg[1 : len(arg)-1], true
}

// substituteWords replaces every word token that encodes a dictionary index
// in the given radix with its dictionary entry.
func substituteWords(payload string, radix int, dict []string) string {
	var sb strings.Builder
	sb.Grow(len(payload) * 2)
	i := 0
	for i < len(payload) {
		if !isWordByte(payload[i]) {
			sb.WriteByte(payload[i])
			i++
			continue
		}
		j := i
		for j < len(payload) && isWordByte(payload[j]) {
			j++
		}
		word := payload[i:j]
		if n, ok := decodeRadix(word, radix); ok && n < len(dict) && dict[n] != "" {
			sb.WriteString(dict[n])
		} else {
			sb.WriteString(word)
		}
		i = j
	}
	return sb.String()
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// decodeRadix inverts the packer's base encoding: 0-9, then a-z, then A-Z.
func decodeRadix(word string, radix int) (int, bool) {
	n := 0
	for i := 0; i < len(word); i++ {
		c := word[i]
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'z':
			d = int(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			d = int(c-'A') + 36
		default:
			return 0, false
		}
		if d >= radix {
			return 0, false
		}
		n = n*radix + d
	}
	return n, true
}
