package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	configYaml := `
logs:
  level: debug
server:
  listen_address: 127.0.0.1
  port: 8085
custodian:
  generator_id: test-gen-1
  subject_cn: provenkit-test
  engine:
    type: software
    storage_directory: /tmp/provenkit-keys
sanitizer:
  policy:
    gps: coarsen
    capture_time: keep
gateway:
  enabled: true
  timeout_seconds: 5
`
	configFile := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configFile, []byte(configYaml), 0600))
	t.Setenv("PROVENKIT_CONFIG_FILE", configFile)

	conf, err := LoadConfig[ProvenanceConfig](nil)
	require.NoError(t, err)

	assert.Equal(t, Debug, conf.Logs.Level)
	assert.Equal(t, 8085, conf.Server.Port)
	assert.Equal(t, "test-gen-1", conf.Custodian.GeneratorID)
	assert.Equal(t, SoftwareProvider, conf.Custodian.Engine.Type)
	assert.Equal(t, "coarsen", conf.Sanitizer.Policy["gps"])
	assert.True(t, conf.Gateway.Enabled)
	assert.Equal(t, 5, conf.Gateway.TimeoutSeconds)
}

func TestDecodeEngineConfig(t *testing.T) {
	raw := map[string]interface{}{
		"storage_directory": "/var/lib/provenkit/keys",
	}

	decoded, err := DecodeStruct[SoftwareConfig](raw)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/provenkit/keys", decoded.StorageDirectory)
}

func TestPasswordNeverMarshalsPlaintext(t *testing.T) {
	pin := Password("hunter2")

	out, err := json.Marshal(struct {
		Pin Password `json:"pin"`
	}{Pin: pin})
	require.NoError(t, err)

	assert.NotContains(t, string(out), "hunter2")
}
