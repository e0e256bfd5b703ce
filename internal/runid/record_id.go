// Package runid computes deterministic record identifiers.
package runid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SnapshotID computes a deterministic snapshot id.
// Formula: SHA256(pool|campaignID|capturedAt-unix-day).
// Using day granularity keeps the id stable for any capture time
// within the first eligible day.
func SnapshotID(pool, campaignID string, capturedAt time.Time) string {
	day := capturedAt.UTC().Truncate(24 * time.Hour).Unix()
	data := fmt.Sprintf("%s|%s|%d", pool, campaignID, day)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// AuditRecordID computes a deterministic audit record id.
// Formula: SHA256(pool|campaignID|cycleAt-unixnano).
func AuditRecordID(pool, campaignID string, cycleAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%d", pool, campaignID, cycleAt.UTC().UnixNano())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
