package models

import "time"

type ValidationStatus string

const (
	StatusValid            ValidationStatus = "VALID"
	StatusInvalidSignature ValidationStatus = "INVALID_SIGNATURE"
	StatusHashMismatch     ValidationStatus = "HASH_MISMATCH"
	StatusUntrustedIssuer  ValidationStatus = "UNTRUSTED_ISSUER"
	StatusRevoked          ValidationStatus = "REVOKED"
	StatusIndeterminate    ValidationStatus = "INDETERMINATE"
)

// ValidationResult is a verification outcome, never an error: callers branch
// on Status to decide how much to trust an asset. OnlineChecked reports
// whether revocation and trust freshness were confirmed against a live
// authority or only against locally cached state.
type ValidationResult struct {
	Status        ValidationStatus `json:"status"`
	OnlineChecked bool             `json:"online_checked"`
	Detail        string           `json:"detail,omitempty"`
	CheckedAt     time.Time        `json:"checked_at"`
}
