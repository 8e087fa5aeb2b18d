// Package textscan provides small index-based scanners for pulling values
// out of HTML and inline JavaScript without a full parser.
package textscan

import "strings"

// QuotedAt scans forward from start to the first single or double quote and
// returns the literal up to the next quote of the same kind, along with the
// index just past it. Backslashes are not escapes: the first matching quote
// always ends the literal.
func QuotedAt(s string, start int) (string, int, bool) {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(s); i++ {
		q := s[i]
		if q != '"' && q != '\'' {
			continue
		}
		j := strings.IndexByte(s[i+1:], q)
		if j < 0 {
			return "", -1, false
		}
		return s[i+1 : i+1+j], i + j + 2, true
	}
	return "", -1, false
}

// QuotedAfter returns the first quoted literal following the first
// occurrence of keyword in s.
func QuotedAfter(s, keyword string) (string, bool) {
	idx := strings.Index(s, keyword)
	if idx < 0 {
		return "", false
	}
	v, _, ok := QuotedAt(s, idx+len(keyword))
	return v, ok
}

// Between returns the text between the first left marker and the next right marker.
func Between(s, left, right string) (string, bool) {
	i := strings.Index(s, left)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(left):]
	j := strings.Index(rest, right)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

// LineContaining returns the first line of s that contains marker.
func LineContaining(s, marker string) (string, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	start := strings.LastIndexByte(s[:idx], '\n') + 1
	end := strings.IndexByte(s[idx:], '\n')
	if end < 0 {
		return s[start:], true
	}
	return s[start : idx+end], true
}

// UnescapeJS undoes the escapes commonly found in inline script literals.
func UnescapeJS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
