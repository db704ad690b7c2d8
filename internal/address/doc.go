// Package address classifies raw recipient input and handles wallet
// address formatting.
//
// # Classification
//
// Classify sorts raw text into one of four kinds:
//
//   - KindEmpty: nothing (or only whitespace) was entered
//   - KindInvalidFormat: text that can never become a recipient, such as a
//     0x-prefixed string of the wrong length or text with interior spaces
//   - KindValidAddress: 0x followed by 40 hex digits, any case
//   - KindNameCandidate: anything else; the identity resolver decides
//
// # Canonical Form
//
// Checksum returns the mixed-case checksummed form of an address. Two
// addresses that differ only in case are the same address; use Equal to
// compare them.
package address
