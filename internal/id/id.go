// Package id generates opaque job identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// New returns a 32-character hex identifier. The crypto/rand failure
// path falls back to a timestamp so job creation never blocks on the
// entropy pool.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "job-" + hex.EncodeToString([]byte(time.Now().UTC().Format("20060102150405.000")))
	}
	return hex.EncodeToString(b[:])
}
