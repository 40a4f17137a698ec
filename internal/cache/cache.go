package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix versions every key so a format change never reads stale entries
const keyPrefix = "consolidator:v1:"

// Key generates a cache key from its parts
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// EmbeddingKey is the key of a text's vector under one embedding model.
// The same text embedded by two models never collides.
func EmbeddingKey(model, text string) string {
	return Key("embedding", model, text)
}
