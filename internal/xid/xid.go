// Package xid generates prefixed, time-ordered unique identifiers for
// stored records (e.g. "pu-1757000000000000000-a1b2c3d4e5f6").
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// A timestamp-only id keeps record creation working if crypto/rand
		// is unavailable.
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
