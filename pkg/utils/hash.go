package utils

import (
	"crypto/md5"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// Fingerprint derives the cache key for a normalized query. The format flag
// is part of the key so plain and AI-formatted answers never collide.
func Fingerprint(normalizedQuery string, aiFormat bool) string {
	return HashString(fmt.Sprintf("%s|ai=%t", normalizedQuery, aiFormat))
}
