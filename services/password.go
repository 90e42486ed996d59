package services

import (
	"math/rand"
)

const (
	matchPasswordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	matchPasswordLength   = 10
)

// GenerateMatchPassword returns a fresh 10-character alphanumeric token.
// Both players type it into the external game client to find each other;
// it is a session handle, not a security boundary.
func GenerateMatchPassword(rng *rand.Rand) string {
	buf := make([]byte, matchPasswordLength)
	for i := range buf {
		buf[i] = matchPasswordAlphabet[rng.Intn(len(matchPasswordAlphabet))]
	}
	return string(buf)
}
