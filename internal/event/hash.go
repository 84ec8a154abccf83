package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTrigger  = "retrig/trigger/v1"
	DomainTimeline = "retrig/timeline/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TriggerID computes the content-addressed ID for one dispatched trigger.
// The ID is stable across restarts given the same session, dispatch
// sequence number, and event payload.
func TriggerID(session string, seq int64, ev TriggerEvent) (string, error) {
	obj := map[string]any{
		"session": session,
		"seq":     seq,
		"event":   ev.canonicalMap(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TriggerID: marshal: %w", err)
	}
	return hashWithDomain(DomainTrigger, canonical), nil
}

// TimelineHash computes the content-addressed hash of a full timeline.
// Two generator runs with identical inputs produce the same hash.
func TimelineHash(events []TriggerEvent) (string, error) {
	canonical, err := MarshalCanonical(events)
	if err != nil {
		return "", fmt.Errorf("TimelineHash: marshal: %w", err)
	}
	return hashWithDomain(DomainTimeline, canonical), nil
}
