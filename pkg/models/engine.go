package models

type KeyType string

const (
	KeyTypeEd25519 KeyType = "ED25519"
	KeyTypeECDSA   KeyType = "ECDSA"
)

type SecurityLevel string

const (
	SecurityLevelSoftware      SecurityLevel = "SOFTWARE"
	SecurityLevelHardwareToken SecurityLevel = "HARDWARE_TOKEN"
)

type CryptoEngineInfo struct {
	Provider          string        `json:"provider"`
	Name              string        `json:"name"`
	SecurityLevel     SecurityLevel `json:"security_level"`
	SupportedKeyTypes []KeyType     `json:"supported_key_types"`
}
