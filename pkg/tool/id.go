package tool

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateKey returns an n character alphanumeric string from crypto/rand.
func GenerateKey(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid key length: %d", n)
	}
	// Rejection sampling keeps the distribution uniform over the 62 symbols.
	const maxByte = 256 - 256%len(keyAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
