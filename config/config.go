package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Kafka         KafkaConfig
	Watcher       WatcherConfig
	Batch         BatchConfig
	Classifier    ClassifierConfig
	Security      SecurityConfig
	Store         StoreConfig
	Elasticsearch ElasticsearchConfig
	TimescaleDB   TimescaleDBConfig
	FileState     FileStateConfig
	Enrichment    EnrichmentConfig
	Notification  NotificationConfig
	Sweep         SweepConfig
	APIKey        string
	LogLevel      string
}

type ServerConfig struct {
	Port string
}

type KafkaConfig struct {
	Brokers    []string
	AlertTopic string
}

type WatcherConfig struct {
	WatchDir           string
	ArchiveDir         string
	AcceptedExtensions []string
	PollInterval       time.Duration
}

type BatchConfig struct {
	Limit   int
	MaxWait time.Duration
}

type ClassifierConfig struct {
	KeywordsFile string // empty means the built-in tables
}

type SecurityConfig struct {
	EncryptionKey     string // hex encoded, takes precedence over KeyFile
	EncryptionKeyFile string
}

type StoreConfig struct {
	Backend string // "elasticsearch" or "memory"
}

type ElasticsearchConfig struct {
	Addresses     []string
	Username      string
	Password      string
	IncidentIndex string
}

type TimescaleDBConfig struct {
	DSN string
}

type FileStateConfig struct {
	FilePath string
}

type EnrichmentConfig struct {
	APIKey         string
	Model          string
	Endpoint       string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxElapsed     time.Duration
	Audience       string
}

type NotificationConfig struct {
	SMTPHost     string
	SMTPPort     int
	Username     string
	Password     string
	Recipients   []string
	DashboardURL string
}

type SweepConfig struct {
	Schedule string
	Limit    int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Enabled reports whether a subscriber database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.Name != ""
}

func NewConfig() (*Config, error) {
	// Configure Viper to read .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Enable automatic environment variable loading
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("WATCH_DIR", "./raw-logs")
	viper.SetDefault("ARCHIVE_DIR", "./cleaned-logs")
	viper.SetDefault("ACCEPTED_EXTENSIONS", ".log,.txt")
	viper.SetDefault("POLL_INTERVAL", "2s")
	viper.SetDefault("FILE_STATE_PATH", "./file_tracking.json")
	viper.SetDefault("BATCH_LIMIT", 5)
	viper.SetDefault("MAX_WAIT_SECONDS", 60)
	viper.SetDefault("KEYWORDS_FILE", "")
	viper.SetDefault("ENCRYPTION_KEY_FILE", "./secret.key")
	viper.SetDefault("STORE_BACKEND", "memory")
	viper.SetDefault("ELASTICSEARCH_ADDRESSES", "http://localhost:9200")
	viper.SetDefault("ELASTICSEARCH_INCIDENT_INDEX", "incidents")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_ALERT_TOPIC", "soc_alerts")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash-latest")
	viper.SetDefault("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("ENRICHMENT_TIMEOUT", "60s")
	viper.SetDefault("ENRICHMENT_MAX_RETRIES", 3)
	viper.SetDefault("ENRICHMENT_INITIAL_BACKOFF", "2s")
	viper.SetDefault("ENRICHMENT_MAX_ELAPSED", "2m")
	viper.SetDefault("ENRICHMENT_AUDIENCE", "analyst")
	viper.SetDefault("SMTP_HOST", "smtp.gmail.com")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("DASHBOARD_URL", "http://localhost:5173")
	viper.SetDefault("TIMESCALEDB_DSN", "")
	viper.SetDefault("SWEEP_SCHEDULE", "0 */15 * * * *") // every 15 minutes
	viper.SetDefault("SWEEP_LIMIT", 100)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config
	config.Server.Port = viper.GetString("SERVER_PORT")
	config.LogLevel = viper.GetString("LOG_LEVEL")

	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	// --- Watcher ---
	config.Watcher.WatchDir = viper.GetString("WATCH_DIR")
	config.Watcher.ArchiveDir = viper.GetString("ARCHIVE_DIR")
	config.Watcher.AcceptedExtensions = splitList(viper.GetString("ACCEPTED_EXTENSIONS"))
	config.Watcher.PollInterval = viper.GetDuration("POLL_INTERVAL")

	// --- Batch ---
	config.Batch.Limit = viper.GetInt("BATCH_LIMIT")
	config.Batch.MaxWait = time.Duration(viper.GetInt("MAX_WAIT_SECONDS")) * time.Second

	config.Classifier.KeywordsFile = viper.GetString("KEYWORDS_FILE")

	config.Security.EncryptionKey = viper.GetString("ENCRYPTION_KEY")
	config.Security.EncryptionKeyFile = viper.GetString("ENCRYPTION_KEY_FILE")

	// --- Store ---
	config.Store.Backend = strings.ToLower(viper.GetString("STORE_BACKEND"))
	config.Elasticsearch.Addresses = splitList(viper.GetString("ELASTICSEARCH_ADDRESSES"))
	config.Elasticsearch.Username = viper.GetString("ELASTICSEARCH_USERNAME")
	config.Elasticsearch.Password = viper.GetString("ELASTICSEARCH_PASSWORD")
	config.Elasticsearch.IncidentIndex = viper.GetString("ELASTICSEARCH_INCIDENT_INDEX")

	// --- Kafka ---
	config.Kafka.Brokers = splitList(viper.GetString("KAFKA_BROKERS"))
	config.Kafka.AlertTopic = viper.GetString("KAFKA_ALERT_TOPIC")

	// --- TimescaleDB ---
	config.TimescaleDB.DSN = viper.GetString("TIMESCALEDB_DSN")

	// --- File State ---
	config.FileState.FilePath = viper.GetString("FILE_STATE_PATH")

	// --- Enrichment ---
	config.Enrichment.APIKey = viper.GetString("GEMINI_API_KEY")
	config.Enrichment.Model = viper.GetString("GEMINI_MODEL")
	config.Enrichment.Endpoint = viper.GetString("GEMINI_ENDPOINT")
	config.Enrichment.Timeout = viper.GetDuration("ENRICHMENT_TIMEOUT")
	config.Enrichment.MaxRetries = viper.GetInt("ENRICHMENT_MAX_RETRIES")
	config.Enrichment.InitialBackoff = viper.GetDuration("ENRICHMENT_INITIAL_BACKOFF")
	config.Enrichment.MaxElapsed = viper.GetDuration("ENRICHMENT_MAX_ELAPSED")
	config.Enrichment.Audience = viper.GetString("ENRICHMENT_AUDIENCE")

	// --- Notification ---
	config.Notification.SMTPHost = viper.GetString("SMTP_HOST")
	config.Notification.SMTPPort = viper.GetInt("SMTP_PORT")
	config.Notification.Username = viper.GetString("EMAIL_USER")
	config.Notification.Password = viper.GetString("EMAIL_PASS")
	config.Notification.Recipients = splitList(viper.GetString("NOTIFY_RECIPIENTS"))
	config.Notification.DashboardURL = viper.GetString("DASHBOARD_URL")

	config.Sweep.Schedule = viper.GetString("SWEEP_SCHEDULE")
	config.Sweep.Limit = viper.GetInt("SWEEP_LIMIT")

	config.APIKey = viper.GetString("API_KEY")

	log.Info().
		Str("watch_dir", config.Watcher.WatchDir).
		Str("archive_dir", config.Watcher.ArchiveDir).
		Strs("extensions", config.Watcher.AcceptedExtensions).
		Int("batch_limit", config.Batch.Limit).
		Dur("max_wait", config.Batch.MaxWait).
		Str("store_backend", config.Store.Backend).
		Msg("Config loaded")
	return &config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
