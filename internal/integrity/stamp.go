package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Stamp returns the hex SHA-256 of eventID|text|createdAt.
func Stamp(eventID, text, createdAt string) string {
	h := sha256.Sum256([]byte(eventID + "|" + text + "|" + createdAt))
	return hex.EncodeToString(h[:])
}

// Verify reports whether hash still matches the three stamped fields.
func Verify(hash, eventID, text, createdAt string) bool {
	want := Stamp(eventID, text, createdAt)
	return subtle.ConstantTimeCompare([]byte(want), []byte(hash)) == 1
}
