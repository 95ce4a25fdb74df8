package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/bts-codec/pkg/codec"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "codec:\n  bsic: 7\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Codec.BSIC != 7 {
		t.Errorf("Expected bsic 7, got %d", cfg.Codec.BSIC)
	}

	if cfg.Codec.FullRateMode() != codec.ModeFR {
		t.Errorf("Expected default full rate mode fr, got %s", cfg.Codec.FullRateMode())
	}

	if cfg.Codec.HalfRateMode() != codec.ModeHR {
		t.Errorf("Expected default half rate mode hr, got %s", cfg.Codec.HalfRateMode())
	}

	full, err := cfg.Codec.FullRateAMR()
	if err != nil {
		t.Fatalf("Failed to resolve full rate set: %v", err)
	}
	if len(full.Codecs) != 4 || full.Codecs[3] != codec.AMR122 {
		t.Errorf("Unexpected default full rate set %v", full.Codecs)
	}

	if cfg.Web.Port != 8080 {
		t.Errorf("Expected default web port 8080, got %d", cfg.Web.Port)
	}

	if cfg.Metrics.Prometheus.Path != "/metrics" {
		t.Errorf("Expected default prometheus path '/metrics', got '%s'", cfg.Metrics.Prometheus.Path)
	}

	if cfg.History.Retention != 168*time.Hour {
		t.Errorf("Expected default retention 168h, got %v", cfg.History.Retention)
	}

	if cfg.Simulation.Blocks != 50 {
		t.Errorf("Expected default blocks 50, got %d", cfg.Simulation.Blocks)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
codec:
  bsic: 63
  tch_mode: amr
  hr_mode: amr
  net_order: true
  amr:
    codec_mode_request: true
    full:
      codecs: ["5.15", "10.2"]
    half:
      codecs: ["4.75", "7.95"]
  pdtch:
    schemes: ["MCS-7", "mcs8", "MCS-9"]
    usfs: [0, 3, 5]

web:
  enabled: false
  port: 9090

mqtt:
  enabled: true
  broker: "tcp://mqtt.example.com:1883"
  client_id: "bts-1"
  qos: 1

history:
  enabled: true
  path: "/var/lib/bts-codec/history.db"
  retention: "24h"

simulation:
  snr_db: 3.5
  blocks: 10
  seed: 99

logging:
  level: "debug"
  format: "json"
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Codec.FullRateMode() != codec.ModeAFS || cfg.Codec.HalfRateMode() != codec.ModeAHS {
		t.Errorf("Expected amr modes, got %s and %s", cfg.Codec.FullRateMode(), cfg.Codec.HalfRateMode())
	}

	if !cfg.Codec.NetOrder || !cfg.Codec.AMR.CodecModeRequest {
		t.Errorf("Expected net_order and codec_mode_request to be set")
	}

	half, err := cfg.Codec.HalfRateAMR()
	if err != nil {
		t.Fatalf("Failed to resolve half rate set: %v", err)
	}
	if len(half.Codecs) != 2 || half.Codecs[0] != codec.AMR475 || half.Codecs[1] != codec.AMR795 {
		t.Errorf("Unexpected half rate set %v", half.Codecs)
	}

	opts, err := cfg.Codec.PDTCHOptions()
	if err != nil {
		t.Fatalf("Failed to resolve pdtch schemes: %v", err)
	}
	if len(opts.Schemes) != 3 || opts.Schemes[1] != codec.SchemeMCS8 {
		t.Errorf("Unexpected pdtch schemes %v", opts.Schemes)
	}
	if len(opts.USFs) != 3 || opts.USFs[2] != 5 {
		t.Errorf("Unexpected pdtch usfs %v", opts.USFs)
	}

	if cfg.Web.Enabled {
		t.Errorf("Expected web to be disabled")
	}

	if cfg.MQTT.ClientID != "bts-1" || cfg.MQTT.QoS != 1 {
		t.Errorf("Unexpected MQTT config %+v", cfg.MQTT)
	}

	if cfg.History.Retention != 24*time.Hour {
		t.Errorf("Expected retention 24h, got %v", cfg.History.Retention)
	}

	if cfg.Simulation.SNRdB != 3.5 || cfg.Simulation.Seed != 99 {
		t.Errorf("Unexpected simulation config %+v", cfg.Simulation)
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("Expected log format 'json', got '%s'", cfg.Logging.Format)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BTSCODEC_CODEC_BSIC", "42")
	t.Setenv("BTSCODEC_LOGGING_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "codec:\n  bsic: 1\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Codec.BSIC != 42 {
		t.Errorf("Expected bsic 42 from environment, got %d", cfg.Codec.BSIC)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level 'warn' from environment, got '%s'", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got %v", err)
	}
	if cfg.Codec.TCHMode != "fr" {
		t.Errorf("Expected default tch_mode 'fr', got '%s'", cfg.Codec.TCHMode)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		expectErr bool
		errorMsg  string
	}{
		{
			name:      "BSIC out of range",
			config:    "codec:\n  bsic: 64\n",
			expectErr: true,
			errorMsg:  "invalid bsic",
		},
		{
			name:      "Unknown tch mode",
			config:    "codec:\n  tch_mode: gsm\n",
			expectErr: true,
			errorMsg:  "invalid tch_mode",
		},
		{
			name:      "Unknown hr mode",
			config:    "codec:\n  hr_mode: efr\n",
			expectErr: true,
			errorMsg:  "invalid hr_mode",
		},
		{
			name:      "Unknown amr mode",
			config:    "codec:\n  amr:\n    full:\n      codecs: [\"4.75\", \"9.9\"]\n",
			expectErr: true,
			errorMsg:  "amr.full",
		},
		{
			name:      "Descending amr set",
			config:    "codec:\n  amr:\n    full:\n      codecs: [\"12.2\", \"4.75\"]\n",
			expectErr: true,
			errorMsg:  "not ascending",
		},
		{
			name:      "Half rate set with 12.2",
			config:    "codec:\n  amr:\n    half:\n      codecs: [\"4.75\", \"12.2\"]\n",
			expectErr: true,
			errorMsg:  "amr.half",
		},
		{
			name:      "Five amr codecs",
			config:    "codec:\n  amr:\n    full:\n      codecs: [\"4.75\", \"5.15\", \"5.9\", \"6.7\", \"7.4\"]\n",
			expectErr: true,
			errorMsg:  "amr.full",
		},
		{
			name:      "Speech scheme in pdtch filter",
			config:    "codec:\n  pdtch:\n    schemes: [\"EFR\"]\n",
			expectErr: true,
			errorMsg:  "not a packet data scheme",
		},
		{
			name:      "Unknown pdtch scheme",
			config:    "codec:\n  pdtch:\n    schemes: [\"MCS-10\"]\n",
			expectErr: true,
			errorMsg:  "pdtch",
		},
		{
			name:      "USF out of range",
			config:    "codec:\n  pdtch:\n    usfs: [1, 8]\n",
			expectErr: true,
			errorMsg:  "usf 8",
		},
		{
			name:      "Invalid web port",
			config:    "web:\n  port: 70000\n",
			expectErr: true,
			errorMsg:  "invalid port",
		},
		{
			name:      "Disabled web ignores port",
			config:    "web:\n  enabled: false\n  port: 0\n",
			expectErr: false,
		},
		{
			name:      "MQTT QoS",
			config:    "mqtt:\n  enabled: true\n  qos: 3\n",
			expectErr: true,
			errorMsg:  "invalid QoS",
		},
		{
			name:      "MQTT without client id",
			config:    "mqtt:\n  enabled: true\n  client_id: \"\"\n",
			expectErr: true,
			errorMsg:  "client_id",
		},
		{
			name:      "Invalid log level",
			config:    "logging:\n  level: verbose\n",
			expectErr: true,
			errorMsg:  "invalid log level",
		},
		{
			name:      "Prometheus path",
			config:    "metrics:\n  prometheus:\n    path: metrics\n",
			expectErr: true,
			errorMsg:  "must start with /",
		},
		{
			name:      "History without path",
			config:    "history:\n  enabled: true\n  path: \"\"\n",
			expectErr: true,
			errorMsg:  "path cannot be empty",
		},
		{
			name:      "Zero simulation blocks",
			config:    "simulation:\n  blocks: 0\n",
			expectErr: true,
			errorMsg:  "blocks must be at least 1",
		},
		{
			name:      "Valid amr config",
			config:    "codec:\n  tch_mode: amr\n  amr:\n    full:\n      codecs: [\"12.2\"]\n",
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))

			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}
