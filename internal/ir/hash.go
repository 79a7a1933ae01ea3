package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing. Each hashed artifact kind gets its
// own domain so identical bytes in different roles never collide.
// Version suffix enables future algorithm migration.
const (
	DomainLedger = "verax/ledger/v1"
	DomainRecord = "verax/record/v1"
	DomainPlan   = "verax/plan/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LedgerHash computes the content hash of a ledger entry payload.
// The hash is a pure function of the payload's canonical JSON: identical
// payload always produces an identical hash, which is what makes replay
// verification possible. Timestamps and entry IDs are never part of the
// hashed material.
func LedgerHash(payload Object) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("LedgerHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLedger, canonical), nil
}

// RecordHash computes the content hash of a record tree. Used for the
// final-state hash in the run proof.
func RecordHash(record Object) (string, error) {
	canonical, err := MarshalCanonical(record)
	if err != nil {
		return "", fmt.Errorf("RecordHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// PlanHash computes the content hash of a plan document's raw bytes.
// Used to version plans in the relational store.
func PlanHash(raw []byte) string {
	return hashWithDomain(DomainPlan, raw)
}

// MustLedgerHash is like LedgerHash but panics on error.
// Use only in tests or when the payload is known to be hashable.
func MustLedgerHash(payload Object) string {
	h, err := LedgerHash(payload)
	if err != nil {
		panic(err)
	}
	return h
}

// MustRecordHash is like RecordHash but panics on error.
// Use only in tests or when the record is known to be hashable.
func MustRecordHash(record Object) string {
	h, err := RecordHash(record)
	if err != nil {
		panic(err)
	}
	return h
}
