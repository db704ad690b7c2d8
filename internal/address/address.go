// ABOUTME: Classifies raw recipient input as empty, invalid, address, or name candidate
// ABOUTME: Also provides checksum canonicalization and case-insensitive comparison

package address

import (
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/sha3"
)

// Length is the number of hex digits in an address, excluding the 0x prefix.
const Length = 40

// ErrInvalidAddress is returned when a string is not a well-formed address.
var ErrInvalidAddress = errors.New("invalid address")

// Kind is the classification of a raw input string.
type Kind int

const (
	KindEmpty Kind = iota
	KindInvalidFormat
	KindValidAddress
	KindNameCandidate
)

// String returns the kind name used in log output.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInvalidFormat:
		return "invalid_format"
	case KindValidAddress:
		return "address"
	case KindNameCandidate:
		return "name_candidate"
	default:
		return "unknown"
	}
}

// Classify determines what kind of recipient the raw input represents.
// Surrounding whitespace is ignored.
func Classify(raw string) Kind {
	s := strings.TrimSpace(raw)
	if s == "" {
		return KindEmpty
	}
	if IsValid(s) {
		return KindValidAddress
	}
	if hasHexPrefix(s) {
		// Looks like an attempted address; no name starts with 0x.
		return KindInvalidFormat
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return KindInvalidFormat
		}
	}
	return KindNameCandidate
}

// IsValid reports whether s is 0x followed by exactly 40 hex digits.
func IsValid(s string) bool {
	if !hasHexPrefix(s) || len(s) != Length+2 {
		return false
	}
	for _, c := range s[2:] {
		if !isHexDigit(c) {
			return false
		}
	}
	return true
}

// Equal reports whether a and b are the same address ignoring case.
func Equal(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Lower returns the lowercase 0x form of an address. It does not validate.
func Lower(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "0x") {
		return s
	}
	return "0x" + s
}

// Checksum returns the mixed-case checksummed form of addr. A hex digit is
// upper-cased when the matching nibble of keccak-256(lowercase hex) is >= 8.
func Checksum(addr string) (string, error) {
	s := strings.TrimSpace(addr)
	if !IsValid(s) {
		return "", ErrInvalidAddress
	}
	lower := strings.ToLower(s[2:])

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := hex.EncodeToString(h.Sum(nil))

	out := make([]byte, 0, Length+2)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out), nil
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
