package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the deterministic deduplication key for a finding.
// Two independent scans of the same defect must always collide, so the hash
// covers only the identity fields: severity, code, entity type, entity id,
// and location. Message text and details are deliberately excluded.
func Fingerprint(severity Severity, code string, entityType EntityType, entityID, location string) string {
	h := sha256.New()
	parts := []string{
		string(severity),
		strings.TrimSpace(code),
		string(entityType),
		strings.TrimSpace(entityID),
		strings.TrimSpace(location),
	}
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeFingerprint fills in f.Fingerprint from the finding's identity fields.
func (f *Finding) ComputeFingerprint() {
	f.Fingerprint = Fingerprint(f.Severity, f.Code, f.EntityType, f.EntityID, f.Location)
}
