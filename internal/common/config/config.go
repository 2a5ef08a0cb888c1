// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Integrations  IntegrationConfig  `mapstructure:"integrations"`
	APIs          APIsConfig         `mapstructure:"apis"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	Index      string   `mapstructure:"index"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EngineConfig holds the slot-filling engine settings.
type EngineConfig struct {
	HistoryLimit       int `mapstructure:"history_limit"`        // turns loaded per message
	GenerationHistory  int `mapstructure:"generation_history"`   // turns forwarded to the LLM
	GenerationTimeout  int `mapstructure:"generation_timeout"`   // milliseconds
	GenerationRetries  int `mapstructure:"generation_retries"`   // attempts before fallback
	ResponseCacheTTL   int `mapstructure:"response_cache_ttl"`   // seconds
	OTPTTL             int `mapstructure:"otp_ttl"`              // seconds
	SuggestionLimit    int `mapstructure:"suggestion_limit"`     // chips per reply
	EvaluationCooldown int `mapstructure:"evaluation_cooldown"`  // seconds, guards duplicate triggers
}

// IntegrationConfig holds settings for external delivery services.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// NotificationConfig holds delivery-channel settings.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
