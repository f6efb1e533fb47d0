package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewCitationID builds the composite citation identifier from the form id, the
// creator, and a nanosecond timestamp. Assigned once, never reused.
func NewCitationID(formID int64, creator string) string {
	return fmt.Sprintf("%d-%s-%d", formID, creator, time.Now().UnixNano())
}
