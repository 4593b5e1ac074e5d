// Package identity derives content-addressed document IDs and the date
// partition used to name persisted artifacts.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// Length is the number of hex characters kept from the digest
const Length = 16

// DateLayout formats ingest dates
const DateLayout = "2006-01-02"

// Identity returns the document ID for a source location and content
// fingerprint. The inputs are joined with "/" and hashed with SHA-256.
func Identity(locationA, locationB, fingerprint string) string {
	sum := sha256.Sum256([]byte(locationA + "/" + locationB + "/" + fingerprint))
	return hex.EncodeToString(sum[:])[:Length]
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant
type FixedClock time.Time

// Now returns the fixed instant
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Partition is the (ingest_date, doc_id) pair that names stored artifacts
type Partition struct {
	IngestDate string `json:"ingest_date"`
	DocID      string `json:"doc_id"`
}

// NewPartition stamps docID with the clock's current UTC date
func NewPartition(clock Clock, docID string) Partition {
	if clock == nil {
		clock = SystemClock{}
	}
	return Partition{
		IngestDate: clock.Now().UTC().Format(DateLayout),
		DocID:      docID,
	}
}

// Prefix returns base/ingest_date=YYYY-MM-DD/doc_id=<id>
func (p Partition) Prefix(base string) string {
	return path.Join(strings.Trim(base, "/"),
		fmt.Sprintf("ingest_date=%s", p.IngestDate),
		fmt.Sprintf("doc_id=%s", p.DocID))
}

// Key returns the object key for name under the partition prefix
func (p Partition) Key(base, name string) string {
	return path.Join(p.Prefix(base), name)
}
