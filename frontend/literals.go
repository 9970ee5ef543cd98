package frontend

import (
	"strconv"
	"strings"
)

// IntLiteral parses an integer literal in C or Java syntax: decimal, hex,
// octal or binary, with digit separators and integer suffixes.
func IntLiteral(text string) (int64, bool) {
	s := strings.ReplaceAll(text, "_", "")
	s = strings.ReplaceAll(s, "'", "")
	isHex := strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
	s = strings.TrimRight(s, "uUlL")
	if s == "" {
		return 0, false
	}
	if !isHex && len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		s = "0o" + s[1:]
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return 0, false
		}
		return int64(u), true
	}
	return v, true
}

// LongSuffix reports whether an integer literal carries an l or L suffix.
func LongSuffix(text string) bool {
	return strings.ContainsAny(strings.TrimLeft(text, "0123456789abcdefABCDEFxXoObB_'"), "lL")
}

// FloatLiteral parses a floating point literal, dropping f, d and l suffixes.
func FloatLiteral(text string) (float64, bool) {
	s := strings.ReplaceAll(text, "_", "")
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = strings.TrimRight(s, "fFdDlL")
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// IsFloatLiteral reports whether a numeric literal denotes a floating point
// value.
func IsFloatLiteral(text string) bool {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		return strings.ContainsAny(text, ".pP")
	}
	return strings.ContainsAny(text, ".eE") || strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F") ||
		strings.HasSuffix(text, "d") || strings.HasSuffix(text, "D")
}

// StringLiteral unquotes a double quoted literal; unknown escapes keep the
// raw text between the quotes.
func StringLiteral(text string) string {
	if v, err := strconv.Unquote(text); err == nil {
		return v
	}
	if strings.HasPrefix(text, `"""`) && strings.HasSuffix(text, `"""`) && len(text) >= 6 {
		return text[3 : len(text)-3]
	}
	return strings.Trim(text, `"`)
}

// CharLiteral decodes a single quoted character literal.
func CharLiteral(text string) rune {
	if v, err := strconv.Unquote(text); err == nil {
		for _, r := range v {
			return r
		}
	}
	inner := strings.Trim(text, "'")
	if v, _, _, err := strconv.UnquoteChar(inner, '\''); err == nil {
		return v
	}
	for _, r := range inner {
		return r
	}
	return 0
}
