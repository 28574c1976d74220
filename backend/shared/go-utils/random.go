// go-utils/random.go

package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

func RandomString(length int) string {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		panic(err) // crypto/rand only fails when the OS entropy source is gone
	}
	return hex.EncodeToString(bytes)[:length]
}

// RandomToken returns a URL-safe token carrying n random bytes.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TemporaryPassword generates an initial password for administratively
// created accounts. It always contains upper, lower, digit and symbol.
func TemporaryPassword() string {
	return "Tmp-" + RandomString(12) + "#9Z"
}
