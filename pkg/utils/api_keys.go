package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

const keyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateRandomKey returns a URL-safe random token of the given length.
func GenerateRandomKey(length int) (string, error) {
	return gonanoid.Generate(keyAlphabet, length)
}
