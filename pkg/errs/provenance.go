package errs

import "errors"

var (
	ErrCryptoEngineNotFound error = errors.New("crypto engine not found")

	ErrHardwareUnavailable error = errors.New("hardware crypto engine unavailable")
	ErrKeyAccessDenied     error = errors.New("signing key access denied")
	ErrIdentityNotFound    error = errors.New("signing identity not found")

	ErrEmptyAssetHash     error = errors.New("asset hash is empty")
	ErrInvalidAssertion   error = errors.New("invalid assertion")
	ErrSigningFailed      error = errors.New("manifest signing failed")
	ErrManifestMalformed  error = errors.New("malformed manifest")
	ErrUnsupportedVersion error = errors.New("unsupported manifest version")

	ErrTrustAnchorsEmpty error = errors.New("trust anchor bundle is empty")

	ErrValidateBadRequest error = errors.New("struct validation error")

	ErrAuditEventNotFound error = errors.New("audit event not found")
)
