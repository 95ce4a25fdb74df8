package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate validates the configuration
func validate(config *Config) error {
	// Validate codec configuration
	if err := validateCodec(&config.Codec); err != nil {
		return fmt.Errorf("codec config: %w", err)
	}

	// Validate web configuration
	if err := validateWeb(&config.Web); err != nil {
		return fmt.Errorf("web config: %w", err)
	}

	// Validate MQTT configuration
	if err := validateMQTT(&config.MQTT); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}

	// Validate logging configuration
	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	// Validate metrics configuration
	if err := validateMetrics(&config.Metrics); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := validateHistory(&config.History); err != nil {
		return fmt.Errorf("history config: %w", err)
	}

	if err := validateSimulation(&config.Simulation); err != nil {
		return fmt.Errorf("simulation config: %w", err)
	}

	return nil
}

// validateCodec validates codec configuration
func validateCodec(config *CodecConfig) error {
	if config.BSIC < 0 || config.BSIC > 63 {
		return fmt.Errorf("invalid bsic: %d (must be 0-63)", config.BSIC)
	}

	validTCH := []string{"fr", "efr", "amr"}
	if !contains(validTCH, strings.ToLower(config.TCHMode)) {
		return fmt.Errorf("invalid tch_mode: %s (must be one of: %s)",
			config.TCHMode, strings.Join(validTCH, ", "))
	}

	validHR := []string{"hr", "amr"}
	if !contains(validHR, strings.ToLower(config.HRMode)) {
		return fmt.Errorf("invalid hr_mode: %s (must be one of: %s)",
			config.HRMode, strings.Join(validHR, ", "))
	}

	full, err := config.FullRateAMR()
	if err != nil {
		return fmt.Errorf("amr.full: %w", err)
	}
	if err := full.Validate(false); err != nil {
		return fmt.Errorf("amr.full: %w", err)
	}

	half, err := config.HalfRateAMR()
	if err != nil {
		return fmt.Errorf("amr.half: %w", err)
	}
	if err := half.Validate(true); err != nil {
		return fmt.Errorf("amr.half: %w", err)
	}

	opts, err := config.PDTCHOptions()
	if err != nil {
		return fmt.Errorf("pdtch: %w", err)
	}
	for _, s := range opts.Schemes {
		if !s.IsPDTCH() {
			return fmt.Errorf("pdtch: %s is not a packet data scheme", s)
		}
	}

	return nil
}

// validateWeb validates web configuration
func validateWeb(config *WebConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Port)
	}

	return nil
}

// validateMQTT validates MQTT configuration
func validateMQTT(config *MQTTConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.Broker == "" {
		return fmt.Errorf("broker cannot be empty")
	}

	// Validate broker URL
	if _, err := url.Parse(config.Broker); err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	if config.ClientID == "" {
		return fmt.Errorf("client_id cannot be empty")
	}

	if config.TopicPrefix == "" {
		return fmt.Errorf("topic_prefix cannot be empty")
	}

	if config.QoS > 2 {
		return fmt.Errorf("invalid QoS level: %d (must be 0, 1, or 2)", config.QoS)
	}

	return nil
}

// validateLogging validates logging configuration
func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			config.Level, strings.Join(validLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)",
			config.Format, strings.Join(validFormats, ", "))
	}

	if config.MaxSize < 1 {
		return fmt.Errorf("max_size must be at least 1")
	}

	if config.MaxBackups < 0 {
		return fmt.Errorf("max_backups cannot be negative")
	}

	if config.MaxAge < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}

	return nil
}

// validateMetrics validates metrics configuration
func validateMetrics(config *MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.Prometheus.Enabled {
		if config.Prometheus.Path == "" {
			return fmt.Errorf("prometheus path cannot be empty")
		}

		if !strings.HasPrefix(config.Prometheus.Path, "/") {
			return fmt.Errorf("prometheus path must start with /")
		}
	}

	return nil
}

func validateHistory(config *HistoryConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if config.Retention < 0 {
		return fmt.Errorf("retention cannot be negative")
	}

	return nil
}

func validateSimulation(config *SimulationConfig) error {
	if config.Blocks < 1 {
		return fmt.Errorf("blocks must be at least 1")
	}

	if config.SNRdB < -20 || config.SNRdB > 60 {
		return fmt.Errorf("snr_db out of range: %.1f", config.SNRdB)
	}

	return nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
