// ABOUTME: Tests for recipient input classification and address checksumming
// ABOUTME: Covers empty, malformed, address, and name-candidate inputs

package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"empty", "", KindEmpty},
		{"whitespace only", "   \t", KindEmpty},
		{"lowercase address", "0x" + strings.Repeat("a", 40), KindValidAddress},
		{"uppercase prefix", "0X" + strings.Repeat("F", 40), KindValidAddress},
		{"mixed case address", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", KindValidAddress},
		{"padded address", "  0x" + strings.Repeat("1", 40) + " ", KindValidAddress},
		{"short hex", "0x1234", KindInvalidFormat},
		{"long hex", "0x" + strings.Repeat("1", 41), KindInvalidFormat},
		{"non hex digit", "0x" + strings.Repeat("g", 40), KindInvalidFormat},
		{"interior space", "alice example", KindInvalidFormat},
		{"short word", "abc", KindNameCandidate},
		{"dotted name", "alice.example", KindNameCandidate},
		{"bare hex without prefix", strings.Repeat("a", 40), KindNameCandidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw))
		})
	}
}

func TestChecksum_KnownVectors(t *testing.T) {
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}

	for _, want := range vectors {
		got, err := Checksum(strings.ToLower(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestChecksum_RejectsMalformed(t *testing.T) {
	_, err := Checksum("0x1234")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("0xABCDEF", "0xabcdef"))
	assert.True(t, Equal(" 0xabc", "0xABC "))
	assert.False(t, Equal("0xabc", "0xabd"))
	assert.False(t, Equal("", ""))
}

func TestLower(t *testing.T) {
	assert.Equal(t, "0xabcdef", Lower("0xABCDEF"))
	assert.Equal(t, "0xabcdef", Lower("ABCDEF"))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "name_candidate", KindNameCandidate.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
