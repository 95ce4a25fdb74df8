package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dbehnke/bts-codec/pkg/codec"
)

// Config represents the application configuration
type Config struct {
	Codec      CodecConfig      `mapstructure:"codec"`
	Web        WebConfig        `mapstructure:"web"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	History    HistoryConfig    `mapstructure:"history"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// CodecConfig holds the channel coding parameters of the cell
type CodecConfig struct {
	BSIC    int         `mapstructure:"bsic"`
	TCHMode string      `mapstructure:"tch_mode"` // fr, efr or amr
	HRMode  string      `mapstructure:"hr_mode"`  // hr or amr
	AMR     AMRConfig   `mapstructure:"amr"`
	PDTCH   PDTCHConfig `mapstructure:"pdtch"`
	// NetOrder selects the codec parameter bit order for FR frames
	NetOrder bool `mapstructure:"net_order"`
}

// AMRConfig holds the active codec sets of full and half rate calls
type AMRConfig struct {
	Full             AMRSetConfig `mapstructure:"full"`
	Half             AMRSetConfig `mapstructure:"half"`
	CodecModeRequest bool         `mapstructure:"codec_mode_request"`
}

// AMRSetConfig lists mode names such as "4.75" or "12.2", lowest first
type AMRSetConfig struct {
	Codecs []string `mapstructure:"codecs"`
}

// PDTCHConfig restricts the EGPRS schemes tried on decode and the USF
// values expected on the downlink
type PDTCHConfig struct {
	Schemes []string `mapstructure:"schemes"`
	USFs    []int    `mapstructure:"usfs"`
}

// WebConfig holds web API configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HistoryConfig holds the link quality history store configuration
type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// SimulationConfig holds the self-test channel defaults
type SimulationConfig struct {
	SNRdB  float64 `mapstructure:"snr_db"`
	Blocks int     `mapstructure:"blocks"`
	Seed   uint64  `mapstructure:"seed"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/bts-codec")
	}

	// Environment variables, e.g. BTSCODEC_CODEC_BSIC
	v.SetEnvPrefix("BTSCODEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal to struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Codec defaults
	v.SetDefault("codec.bsic", 0)
	v.SetDefault("codec.tch_mode", "fr")
	v.SetDefault("codec.hr_mode", "hr")
	v.SetDefault("codec.net_order", false)
	v.SetDefault("codec.amr.full.codecs", []string{"4.75", "5.9", "7.4", "12.2"})
	v.SetDefault("codec.amr.half.codecs", []string{"4.75", "5.9", "7.4"})
	v.SetDefault("codec.amr.codec_mode_request", false)
	v.SetDefault("codec.pdtch.schemes", []string{})
	v.SetDefault("codec.pdtch.usfs", []int{})

	// Web defaults
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8080)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "bts/codec")
	v.SetDefault("mqtt.client_id", "bts-codec")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retained", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	// History defaults
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "data/history.db")
	v.SetDefault("history.retention", "168h")

	// Simulation defaults
	v.SetDefault("simulation.snr_db", 6.0)
	v.SetDefault("simulation.blocks", 50)
	v.SetDefault("simulation.seed", 1)
}

// FullRateAMR resolves the full rate active codec set.
func (c *CodecConfig) FullRateAMR() (codec.AMRConfig, error) {
	return amrSet(c.AMR.Full.Codecs)
}

// HalfRateAMR resolves the half rate active codec set.
func (c *CodecConfig) HalfRateAMR() (codec.AMRConfig, error) {
	return amrSet(c.AMR.Half.Codecs)
}

func amrSet(names []string) (codec.AMRConfig, error) {
	var set codec.AMRConfig
	for _, n := range names {
		m, err := codec.ParseAMRMode(n)
		if err != nil {
			return codec.AMRConfig{}, err
		}
		set.Codecs = append(set.Codecs, m)
	}
	return set, nil
}

// PDTCHOptions resolves the configured EGPRS scheme filter and USF set.
func (c *CodecConfig) PDTCHOptions() (codec.PDTCHOptions, error) {
	var opts codec.PDTCHOptions
	for _, n := range c.PDTCH.Schemes {
		s, err := codec.ParseScheme(n)
		if err != nil {
			return codec.PDTCHOptions{}, err
		}
		opts.Schemes = append(opts.Schemes, s)
	}
	for _, u := range c.PDTCH.USFs {
		if u < 0 || u > 7 {
			return codec.PDTCHOptions{}, fmt.Errorf("usf %d: %w", u, codec.ErrUSFOutOfRange)
		}
		opts.USFs = append(opts.USFs, uint8(u))
	}
	return opts, nil
}

// FullRateMode maps tch_mode onto the codec channel mode.
func (c *CodecConfig) FullRateMode() codec.ChannelMode {
	switch strings.ToLower(c.TCHMode) {
	case "efr":
		return codec.ModeEFR
	case "amr":
		return codec.ModeAFS
	}
	return codec.ModeFR
}

// HalfRateMode maps hr_mode onto the codec channel mode.
func (c *CodecConfig) HalfRateMode() codec.ChannelMode {
	if strings.EqualFold(c.HRMode, "amr") {
		return codec.ModeAHS
	}
	return codec.ModeHR
}
