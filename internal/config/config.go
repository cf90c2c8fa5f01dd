// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/netanon/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `netanon:` root key in YAML.
type GlobalConfig struct {
	Log           LogConfig            `mapstructure:"log"`
	Metrics       MetricsConfig        `mapstructure:"metrics"`
	Anonymize     AnonymizeConfig      `mapstructure:"anonymize"`
	Partitions    []PartitionConfig    `mapstructure:"partitions"`
	Substitutions []SubstitutionConfig `mapstructure:"substitutions"`
	Audit         AuditConfig          `mapstructure:"audit"`
	Extract       ExtractConfig        `mapstructure:"extract"`
}

// ─── Anonymization ───

// AnonymizeConfig controls the anonymization engine and run pipeline.
type AnonymizeConfig struct {
	DefaultSubnet string `mapstructure:"default_subnet"` // Pool for peers without a partition
	Strategy      string `mapstructure:"strategy"`       // random | keyed
	Seed          uint64 `mapstructure:"seed"`           // 0 = non-reproducible random draws
	Key           string `mapstructure:"key"`            // 32 bytes, keyed strategy only
	AllowOverlap  bool   `mapstructure:"allow_overlap"`  // later partition wins instead of failing
	DecodeWorkers int    `mapstructure:"decode_workers"` // >1 enables the ordered parallel decode stage
	Parallel      int    `mapstructure:"parallel"`       // concurrent files in batch mode
}

// PartitionConfig is one application group: a set of private addresses whose
// public peers are replaced from Subnet.
type PartitionConfig struct {
	Name      string   `mapstructure:"name" yaml:"name"`
	Subnet    string   `mapstructure:"subnet" yaml:"subnet"`
	Addresses []string `mapstructure:"addresses" yaml:"addresses"`
}

// SubstitutionConfig is one group of the CSV substitution pass.
type SubstitutionConfig struct {
	Name       string   `mapstructure:"name" yaml:"name"`
	Substitute string   `mapstructure:"substitute" yaml:"substitute"`
	Addresses  []string `mapstructure:"addresses" yaml:"addresses"`
}

// ─── Audit ───

// AuditConfig configures where audit records go besides the CSV table.
type AuditConfig struct {
	Kafka KafkaAuditConfig `mapstructure:"kafka"`
}

// KafkaAuditConfig configures the Kafka audit sink.
type KafkaAuditConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	Compression  string   `mapstructure:"compression"` // none | gzip | snappy | lz4
	BatchSize    int      `mapstructure:"batch_size"`
	BatchTimeout string   `mapstructure:"batch_timeout"`
	MaxAttempts  int      `mapstructure:"max_attempts"`
}

// ─── Extraction ───

// ExtractConfig configures the metadata extraction pass.
type ExtractConfig struct {
	Mode        string `mapstructure:"mode"`         // metadata | combined | data
	LogInterval int    `mapstructure:"log_interval"` // progress log every N packets
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

const (
	StrategyRandom = "random"
	StrategyKeyed  = "keyed"

	ExtractMetadata = "metadata"
	ExtractCombined = "combined"
	ExtractData     = "data"
)

// configRoot is the top-level wrapper matching the YAML structure `netanon: ...`.
type configRoot struct {
	Netanon GlobalConfig `mapstructure:"netanon"`
}

// Load loads configuration from file. An empty path yields the defaults.
// Env vars use the NETANON_ prefix (e.g., NETANON_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `netanon.` key prefix maps to `NETANON_` in env vars via the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Netanon

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "netanon." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("netanon.log.level", "info")
	v.SetDefault("netanon.log.format", "text")
	v.SetDefault("netanon.log.outputs.file.enabled", false)
	v.SetDefault("netanon.log.outputs.file.path", "netanon.log")
	v.SetDefault("netanon.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("netanon.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("netanon.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("netanon.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("netanon.metrics.enabled", false)
	v.SetDefault("netanon.metrics.listen", ":9091")
	v.SetDefault("netanon.metrics.path", "/metrics")

	// Anonymization defaults
	v.SetDefault("netanon.anonymize.default_subnet", "10.0.0.0/8")
	v.SetDefault("netanon.anonymize.strategy", StrategyRandom)
	v.SetDefault("netanon.anonymize.seed", 0)
	v.SetDefault("netanon.anonymize.allow_overlap", false)
	v.SetDefault("netanon.anonymize.decode_workers", 1)
	v.SetDefault("netanon.anonymize.parallel", 1)

	// Audit defaults
	v.SetDefault("netanon.audit.kafka.enabled", false)
	v.SetDefault("netanon.audit.kafka.topic", "netanon-audit")
	v.SetDefault("netanon.audit.kafka.compression", "snappy")
	v.SetDefault("netanon.audit.kafka.batch_size", 100)
	v.SetDefault("netanon.audit.kafka.batch_timeout", "100ms")
	v.SetDefault("netanon.audit.kafka.max_attempts", 3)

	// Extraction defaults
	v.SetDefault("netanon.extract.mode", ExtractMetadata)
	v.SetDefault("netanon.extract.log_interval", 10000)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
// Address-level validation of partitions happens when the partition table is
// built, so a single error names the offending group.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	// ── Anonymize validation ──
	a := &cfg.Anonymize
	if _, err := netip.ParsePrefix(a.DefaultSubnet); err != nil {
		return fmt.Errorf("%w: anonymize.default_subnet %q: %v", core.ErrConfigInvalid, a.DefaultSubnet, err)
	}
	switch a.Strategy {
	case StrategyRandom:
	case StrategyKeyed:
		if a.Key == "" {
			return fmt.Errorf("%w: anonymize.key is required when anonymize.strategy=keyed", core.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported anonymize.strategy: %s (must be random/keyed)", core.ErrConfigInvalid, a.Strategy)
	}
	if a.DecodeWorkers < 1 {
		a.DecodeWorkers = 1
	}
	if a.Parallel < 1 {
		a.Parallel = 1
	}

	for i, p := range cfg.Partitions {
		if p.Subnet == "" {
			return fmt.Errorf("%w: partitions[%d] (%s) has no subnet", core.ErrConfigInvalid, i, p.Name)
		}
		if p.Name == "" {
			cfg.Partitions[i].Name = fmt.Sprintf("partition-%d", i)
		}
	}

	for i, s := range cfg.Substitutions {
		if _, err := netip.ParseAddr(s.Substitute); err != nil {
			return fmt.Errorf("%w: substitutions[%d] (%s) substitute %q: %v", core.ErrConfigInvalid, i, s.Name, s.Substitute, err)
		}
	}

	// ── Audit validation ──
	if cfg.Audit.Kafka.Enabled {
		if len(cfg.Audit.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: audit.kafka.brokers is required when audit.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.Audit.Kafka.Topic == "" {
			return fmt.Errorf("%w: audit.kafka.topic is required when audit.kafka.enabled=true", core.ErrConfigInvalid)
		}
	}

	// ── Extract validation ──
	switch cfg.Extract.Mode {
	case ExtractMetadata, ExtractCombined, ExtractData:
	default:
		return fmt.Errorf("%w: unsupported extract.mode: %s", core.ErrConfigInvalid, cfg.Extract.Mode)
	}
	if cfg.Extract.LogInterval <= 0 {
		cfg.Extract.LogInterval = 10000
	}

	return nil
}
