package config

type LogLevel string

const (
	Info  LogLevel = "info"
	Debug LogLevel = "debug"
	Trace LogLevel = "trace"
	None  LogLevel = "none"
)

type Logging struct {
	Level LogLevel `mapstructure:"level"`
}

type CryptoEngineProvider string

const (
	SoftwareProvider CryptoEngineProvider = "software"
	PKCS11Provider   CryptoEngineProvider = "pkcs11"
)

type HTTPProtocol string

const (
	HTTPS HTTPProtocol = "https"
	HTTP  HTTPProtocol = "http"
)
