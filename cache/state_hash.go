package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashState hashes a state value into a fixed length key, so raw state values
// never appear as cache keys.
func HashState(state string) string {
	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}
