package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the linkage engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (database password) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8087"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Linking engine behavior
	Linking LinkingConfig `yaml:"linking"`

	// Confidence scoring weights
	Scoring ScoringConfig `yaml:"scoring"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"linkage"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"linkage_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// LinkingConfig holds decision thresholds and batch behavior for the linking
// engine. Thresholds are tuned empirically and must never be hardcoded.
type LinkingConfig struct {
	// AutoLinkThreshold is the minimum score for automatic link creation.
	AutoLinkThreshold int `yaml:"auto_link_threshold" env:"LINK_AUTO_THRESHOLD" env-default:"85"`
	// SuggestThreshold is the minimum score for a reviewable suggestion.
	// Scores below it produce no action.
	SuggestThreshold int `yaml:"suggest_threshold" env:"LINK_SUGGEST_THRESHOLD" env-default:"60"`
	// ConflictPolicy selects the fallback when identifiers match multiple
	// shipments: "oldest_shipment" links the earliest-created match,
	// "skip" records the conflict and links nothing.
	ConflictPolicy string `yaml:"conflict_policy" env:"LINK_CONFLICT_POLICY" env-default:"oldest_shipment"`
	// BackfillPendingScore is the fixed confidence assigned when backfill
	// resolves a document already flagged as pending link.
	BackfillPendingScore int `yaml:"backfill_pending_score" env:"LINK_BACKFILL_PENDING_SCORE" env-default:"95"`
	// Workers is the bounded worker-pool width for batch operations.
	Workers int `yaml:"workers" env:"LINK_WORKERS" env-default:"4"`
	// BatchSize is the default page size for batch operations.
	BatchSize int `yaml:"batch_size" env:"LINK_BATCH_SIZE" env-default:"50"`
	// MaxItems caps how many items a single batch run takes on. Zero means
	// unlimited.
	MaxItems int `yaml:"max_items" env:"LINK_MAX_ITEMS" env-default:"0"`
}

// Conflict fallback policies.
const (
	ConflictPolicyOldest = "oldest_shipment"
	ConflictPolicySkip   = "skip"
)

// ScoringConfig holds the additive confidence-score components. All values
// are configurable because they are tuned against real correspondence.
type ScoringConfig struct {
	BaseBooking   int `yaml:"base_booking" env:"SCORE_BASE_BOOKING" env-default:"95"`
	BaseBL        int `yaml:"base_bl" env:"SCORE_BASE_BL" env-default:"90"`
	BaseContainer int `yaml:"base_container" env:"SCORE_BASE_CONTAINER" env-default:"75"`
	BaseReference int `yaml:"base_reference" env:"SCORE_BASE_REFERENCE" env-default:"50"`
	ManualScore   int `yaml:"manual_score" env:"SCORE_MANUAL" env-default:"100"`

	AuthorityDirectCarrier    int `yaml:"authority_direct_carrier" env:"SCORE_AUTH_DIRECT" env-default:"5"`
	AuthorityForwardedCarrier int `yaml:"authority_forwarded_carrier" env:"SCORE_AUTH_FORWARDED" env-default:"2"`
	AuthorityInternal         int `yaml:"authority_internal" env:"SCORE_AUTH_INTERNAL" env-default:"0"`
	AuthorityThirdParty       int `yaml:"authority_third_party" env:"SCORE_AUTH_THIRD_PARTY" env-default:"-5"`

	DocumentTypeBonus int `yaml:"document_type_bonus" env:"SCORE_DOC_BONUS" env-default:"5"`

	// Time decay: no penalty within the grace window, then PenaltyPerWeek per
	// additional full week, floored at -DecayFloor. Legitimate documents
	// (invoices, amendments) often arrive weeks later and must not be
	// over-penalized.
	DecayGraceDays int `yaml:"decay_grace_days" env:"SCORE_DECAY_GRACE_DAYS" env-default:"7"`
	PenaltyPerWeek int `yaml:"decay_penalty_per_week" env:"SCORE_DECAY_PER_WEEK" env-default:"3"`
	DecayFloor     int `yaml:"decay_floor" env:"SCORE_DECAY_FLOOR" env-default:"12"`

	// Lookup tables. Empty tables get the built-in defaults at load time.
	HighValueDocs    []string       `yaml:"high_value_docs"`
	MessageTypes     map[string]int `yaml:"message_types"`
	SenderCategories map[string]int `yaml:"sender_categories"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists, configuration is read from the
// environment alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	cfg.Scoring.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Linking.SuggestThreshold >= c.Linking.AutoLinkThreshold {
		return fmt.Errorf("suggest threshold %d must be below auto-link threshold %d",
			c.Linking.SuggestThreshold, c.Linking.AutoLinkThreshold)
	}
	switch c.Linking.ConflictPolicy {
	case ConflictPolicyOldest, ConflictPolicySkip:
	default:
		return fmt.Errorf("unknown conflict policy %q", c.Linking.ConflictPolicy)
	}
	if c.Linking.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Linking.Workers)
	}
	return nil
}

// applyDefaults fills the lookup tables cleanenv cannot default from tags.
func (s *ScoringConfig) applyDefaults() {
	if len(s.HighValueDocs) == 0 {
		s.HighValueDocs = []string{
			"booking_confirmation",
			"booking_amendment",
			"bill_of_lading",
			"arrival_notice",
			"shipping_instruction",
			"departure_notice",
		}
	}
	if len(s.MessageTypes) == 0 {
		s.MessageTypes = map[string]int{
			"status_update":          2,
			"document_delivery":      2,
			"generic_correspondence": -2,
		}
	}
	if len(s.SenderCategories) == 0 {
		s.SenderCategories = map[string]int{
			"carrier":           3,
			"customs_broker":    2,
			"freight_forwarder": 1,
			"unknown":           -2,
		}
	}
}

// IsHighValueDoc returns true if the document type carries the fixed bonus.
func (s *ScoringConfig) IsHighValueDoc(docType string) bool {
	for _, d := range s.HighValueDocs {
		if d == docType {
			return true
		}
	}
	return false
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
