package config

type ProvenanceConfig struct {
	Logs      Logging         `mapstructure:"logs"`
	Server    HttpServer      `mapstructure:"server"`
	Custodian CustodianConfig `mapstructure:"custodian"`
	Sanitizer SanitizerConfig `mapstructure:"sanitizer"`
	Verifier  VerifierConfig  `mapstructure:"verifier"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type HttpServer struct {
	LogLevel           LogLevel     `mapstructure:"log_level"`
	HealthCheckLogging bool         `mapstructure:"health_check"`
	ListenAddress      string       `mapstructure:"listen_address"`
	Port               int          `mapstructure:"port"`
	Protocol           HTTPProtocol `mapstructure:"protocol"`
	CertFile           string       `mapstructure:"cert_file"`
	KeyFile            string       `mapstructure:"key_file"`
}

type CustodianConfig struct {
	LogLevel    LogLevel           `mapstructure:"log_level"`
	Engine      CryptoEngineConfig `mapstructure:"engine"`
	GeneratorID string             `mapstructure:"generator_id"`
	SubjectCN   string             `mapstructure:"subject_cn"`

	// AttestationCACertFile and AttestationCAKeyFile point to the certificate
	// and key used to attest freshly created identities. When unset a software
	// attestation CA is provisioned from the identity key.
	AttestationCACertFile string `mapstructure:"attestation_ca_cert_file"`
	AttestationCAKeyFile  string `mapstructure:"attestation_ca_key_file"`
}

type CryptoEngineConfig struct {
	ID       string                 `mapstructure:"id"`
	Type     CryptoEngineProvider   `mapstructure:"type"`
	Metadata map[string]interface{} `mapstructure:"metadata"`
	Config   map[string]interface{} `mapstructure:",remain"`
}

type PKCS11Config struct {
	ModulePath string   `mapstructure:"module_path"`
	TokenLabel string   `mapstructure:"token_label"`
	Pin        Password `mapstructure:"pin"`
}

type SoftwareConfig struct {
	StorageDirectory string `mapstructure:"storage_directory"`
}

type SanitizerConfig struct {
	LogLevel LogLevel `mapstructure:"log_level"`
	// Policy maps a metadata field name to one of "drop", "coarsen" or "keep".
	// Fields not present in the map are dropped.
	Policy map[string]string `mapstructure:"policy"`
}

type VerifierConfig struct {
	LogLevel         LogLevel `mapstructure:"log_level"`
	TrustAnchorsFile string   `mapstructure:"trust_anchors_file"`
	RevocationFile   string   `mapstructure:"revocation_file"`
}

type GatewayConfig struct {
	LogLevel           LogLevel `mapstructure:"log_level"`
	Enabled            bool     `mapstructure:"enabled"`
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	OCSPResponderURL   string   `mapstructure:"ocsp_responder_url"`
	CRLDistributionURL string   `mapstructure:"crl_distribution_url"`
	CRLRefreshSchedule string   `mapstructure:"crl_refresh_schedule"`
}

type AuditConfig struct {
	LogLevel LogLevel `mapstructure:"log_level"`
	// StoragePath is the sqlite database holding the append-only event log.
	StoragePath string `mapstructure:"storage_path"`
}
