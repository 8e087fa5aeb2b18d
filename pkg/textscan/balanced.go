package textscan

import (
	"strings"
)

// Balanced returns the substring starting at the first open byte found at or
// after start and ending at its matching close byte. Nesting is tracked with a
// depth counter; string literals are not special-cased, so braces inside
// quoted text are counted too.
func Balanced(s string, start int, open, close byte) (string, bool) {
	if start < 0 || start >= len(s) {
		return "", false
	}
	i := strings.IndexByte(s[start:], open)
	if i < 0 {
		return "", false
	}
	i += start
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[i : j+1], true
			}
		}
	}
	return "", false
}

// BalancedQuoted is Balanced, but ignores open and close bytes that appear
// inside single- or double-quoted literals.
func BalancedQuoted(s string, start int, open, close byte) (string, bool) {
	if start < 0 || start >= len(s) {
		return "", false
	}
	i := strings.IndexByte(s[start:], open)
	if i < 0 {
		return "", false
	}
	i += start
	depth := 0
	var quote byte
	for j := i; j < len(s); j++ {
		c := s[j]
		if quote != 0 {
			switch c {
			case '\\':
				j++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[i : j+1], true
			}
		}
	}
	return "", false
}

// ObjectAfter returns the balanced {...} literal that follows the first
// occurrence of marker, e.g. the config object assigned to player_aaaa.
func ObjectAfter(s, marker string) (string, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	return Balanced(s, idx+len(marker), '{', '}')
}

// CallArgs returns the argument text of the first call to fn, without the
// surrounding parentheses.
func CallArgs(s, fn string) (string, bool) {
	idx := strings.Index(s, fn+"(")
	if idx < 0 {
		return "", false
	}
	call, ok := Balanced(s, idx+len(fn), '(', ')')
	if !ok {
		return "", false
	}
	return call[1 : len(call)-1], true
}

// SplitArgs splits an argument list at top-level commas. Commas nested in
// brackets or inside quoted literals do not split.
func SplitArgs(s string) []string {
	var (
		args  []string
		depth int
		quote byte
		last  int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[last:]))
}
