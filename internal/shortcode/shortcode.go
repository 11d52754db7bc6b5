// Package shortcode generates the 6-character codes behind recipe short links.
package shortcode

import (
	"crypto/rand"
	"math/big"
)

// Length is the number of characters in every short code.
const Length = 6

// Alphabet is the set of characters a code is drawn from. Codes are
// case-sensitive, so "abc123" and "ABC123" are different codes.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a new random code of Length characters from Alphabet.
//
// crypto/rand rather than math/rand: codes are public URLs, and a predictable
// sequence would let anyone walk every recipe link in creation order.
func Generate() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Valid reports whether code has the shape of a generated code. The resolver
// uses it to reject obviously malformed codes without a database round trip.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
