package tosig

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
)

type nestedError struct {
	sentinel error
	err      error
}

// nestError wraps an error built from format and args in sentinel so that
// errors.Is matches both.
func nestError(sentinel error, format string, args ...any) error {
	return nestedError{
		sentinel: sentinel,
		err:      fmt.Errorf(format, args...),
	}
}

func (e nestedError) Error() string {
	return e.sentinel.Error() + ": " + e.err.Error()
}

func (e nestedError) Is(target error) bool {
	return errors.Is(e.sentinel, target)
}

func (e nestedError) Unwrap() error {
	return e.err
}

func hmacSHA256(key []byte, s string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(s))
	return h.Sum(nil)
}

const upperhex = "0123456789ABCDEF"

func noEscape(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}

// uriEncode percent-encodes every byte of s outside the unreserved set,
// operating on the UTF-8 encoding. A literal / is preserved unless encodeSlash
// is set, so multi-segment object keys keep their path separators.
func uriEncode(s string, encodeSlash bool) string {
	var hexCount int
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !noEscape(c) && (c != '/' || encodeSlash) {
			hexCount++
		}
	}
	if hexCount == 0 {
		return s
	}

	encoded := make([]byte, 0, len(s)+2*hexCount)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if noEscape(c) || (c == '/' && !encodeSlash) {
			encoded = append(encoded, c)
		} else {
			encoded = append(encoded, '%', upperhex[c>>4], upperhex[c&0xf])
		}
	}
	return string(encoded)
}
