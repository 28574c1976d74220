// go-utils/hash.go

package utils

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken is used to store confirmation tokens without keeping the raw value.
func HashToken(raw string) string {
	hasher := sha256.New()
	hasher.Write([]byte(raw))
	return base64.URLEncoding.EncodeToString(hasher.Sum(nil))
}
