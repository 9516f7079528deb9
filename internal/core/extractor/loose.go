package extractor

import (
	"encoding/base64"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	errNotApplicable = errors.New("not applicable")
	errNotJSON       = errors.New("result is not a JSON object or array")

	base64Text = regexp.MustCompile(`^[A-Za-z0-9+/_-]+={0,2}$`)
)

// minBase64Len keeps short tokens from being mistaken for base64 payloads
const minBase64Len = 16

type decodeStep struct {
	name   string
	decode func(string) (string, error)
}

// looseSteps are tried in order against the same input
var looseSteps = []decodeStep{
	{"raw", func(s string) (string, error) { return s, nil }},
	{"unquote", stripQuotes},
	{"percent", percentDecode},
	{"percent-plus", percentPlusDecode},
	{"backslash", backslashDecode},
	{"base64", base64Decode},
}

// LooseDecode tries a fixed sequence of decodings on text that failed strict
// parsing and returns the first result that is a JSON object or array
func LooseDecode(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, step := range looseSteps {
		if doc, err := step.try(text); err == nil {
			return doc, true
		}
	}
	return "", false
}

func (s decodeStep) try(text string) (string, error) {
	out, err := s.decode(text)
	if err != nil {
		return "", &DecodeError{Step: s.name, Err: err}
	}
	out = normalizeState(out)
	if !isStructuredJSON(out) {
		return "", &DecodeError{Step: s.name, Err: errNotJSON}
	}
	return out, nil
}

// stripQuotes removes one layer of matching surrounding quotes
func stripQuotes(s string) (string, error) {
	if len(s) < 2 {
		return "", errNotApplicable
	}
	first, last := s[0], s[len(s)-1]
	if first != last || (first != '"' && first != '\'') {
		return "", errNotApplicable
	}
	return s[1 : len(s)-1], nil
}

func unquoted(s string) string {
	if inner, err := stripQuotes(s); err == nil {
		return inner
	}
	return s
}

func percentDecode(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return "", errNotApplicable
	}
	return url.PathUnescape(unquoted(s))
}

func percentPlusDecode(s string) (string, error) {
	if !strings.ContainsAny(s, "%+") {
		return "", errNotApplicable
	}
	return url.QueryUnescape(unquoted(s))
}

// backslashDecode resolves string-literal escapes: \uXXXX (with surrogate
// pairs), \xHH, \n and friends, plus \/ \" and \' which strconv rejects
// outside a quoted literal
func backslashDecode(s string) (string, error) {
	s = unquoted(s)
	if !strings.Contains(s, `\`) {
		return "", errNotApplicable
	}

	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		if s[0] != '\\' {
			_, size := utf8.DecodeRuneInString(s)
			b.WriteString(s[:size])
			s = s[size:]
			continue
		}
		if len(s) >= 2 {
			switch s[1] {
			case '/', '"', '\'':
				b.WriteByte(s[1])
				s = s[2:]
				continue
			}
		}
		// strconv refuses lone surrogates, so JSON-style pairs are joined here
		if hi, ok := hexEscape(s); ok && utf16.IsSurrogate(hi) {
			if lo, ok := hexEscape(s[6:]); ok {
				if r := utf16.DecodeRune(hi, lo); r != utf8.RuneError {
					b.WriteRune(r)
					s = s[12:]
					continue
				}
			}
			b.WriteRune(utf8.RuneError)
			s = s[6:]
			continue
		}

		value, multibyte, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			return "", err
		}
		if value < utf8.RuneSelf || !multibyte {
			b.WriteByte(byte(value))
		} else {
			b.WriteRune(value)
		}
		s = tail
	}
	return b.String(), nil
}

// hexEscape parses a leading \uXXXX escape
func hexEscape(s string) (rune, bool) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:6], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

// base64Decode accepts the standard and URL alphabets with or without padding
func base64Decode(s string) (string, error) {
	s = strings.Join(strings.Fields(unquoted(s)), "")
	if len(s) < minBase64Len || !base64Text.MatchString(s) {
		return "", errNotApplicable
	}
	s = strings.TrimRight(s, "=")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}

	if out, err := base64.StdEncoding.DecodeString(s); err == nil {
		return string(out), nil
	}
	out, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
