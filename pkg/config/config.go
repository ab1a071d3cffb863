package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	Ingestion     IngestionConfig
	Battery       BatteryConfig
	Custody       CustodyConfig
	Photographers PhotographersConfig
	Locks         LocksConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"VEHICLESYNC_APP_ENV" required:"true"`
	Port         string   `envconfig:"VEHICLESYNC_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"VEHICLESYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"VEHICLESYNC_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"VEHICLESYNC_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VEHICLESYNC_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics for workers that have no API surface.
	// Empty disables the listener.
	MetricsAddr string `envconfig:"VEHICLESYNC_WORKER_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"VEHICLESYNC_DB_DSN"`
	Driver string `envconfig:"VEHICLESYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VEHICLESYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"VEHICLESYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VEHICLESYNC_DB_USER"`
	LegacyPassword string `envconfig:"VEHICLESYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"VEHICLESYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"VEHICLESYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VEHICLESYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VEHICLESYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VEHICLESYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VEHICLESYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"VEHICLESYNC_DB_SLOW_QUERY" default:"500ms"`
	TxRetries       int           `envconfig:"VEHICLESYNC_DB_TX_RETRIES" default:"3"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type RedisConfig struct {
	URL          string        `envconfig:"VEHICLESYNC_REDIS_URL"`
	Address      string        `envconfig:"VEHICLESYNC_REDIS_ADDR"`
	Password     string        `envconfig:"VEHICLESYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"VEHICLESYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VEHICLESYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VEHICLESYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VEHICLESYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VEHICLESYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VEHICLESYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"VEHICLESYNC_REDIS_KEY_PREFIX" default:"vs"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VEHICLESYNC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VEHICLESYNC_AUTO_MIGRATE" default:"false"`
}

// IngestionConfig describes the external listing and how it is folded into stock.
type IngestionConfig struct {
	SourceURL       string        `envconfig:"VEHICLESYNC_INGESTION_SOURCE_URL"`
	APIKey          string        `envconfig:"VEHICLESYNC_INGESTION_API_KEY"`
	APIKeyHeader    string        `envconfig:"VEHICLESYNC_INGESTION_API_KEY_HEADER" default:"X-API-Key"`
	Interval        time.Duration `envconfig:"VEHICLESYNC_INGESTION_INTERVAL" default:"8h"`
	Timeout         time.Duration `envconfig:"VEHICLESYNC_INGESTION_TIMEOUT" default:"2m"`
	AvailableMarker string        `envconfig:"VEHICLESYNC_INGESTION_AVAILABLE_MARKER" default:"AVAILABLE"`
	ReservedMarker  string        `envconfig:"VEHICLESYNC_INGESTION_RESERVED_MARKER" default:"RESERVED"`
	BackdateOffset  time.Duration `envconfig:"VEHICLESYNC_INGESTION_BACKDATE_OFFSET" default:"48h"`
	ArchiveEnabled  bool          `envconfig:"VEHICLESYNC_INGESTION_ARCHIVE_ENABLED" default:"false"`
}

// BatteryConfig drives the battery overlay. AlertDays is keyed by powertrain class,
// e.g. "electric:14,plug_in_hybrid:30".
type BatteryConfig struct {
	Classes          []string       `envconfig:"VEHICLESYNC_BATTERY_CLASSES" default:"electric,plug_in_hybrid"`
	AlertDays        map[string]int `envconfig:"VEHICLESYNC_BATTERY_ALERT_DAYS" default:"electric:14,plug_in_hybrid:30"`
	DefaultAlertDays int            `envconfig:"VEHICLESYNC_BATTERY_DEFAULT_ALERT_DAYS" default:"30"`
}

// Monitors reports whether vehicles of the given class get a battery record.
func (b BatteryConfig) Monitors(class string) bool {
	normalized := strings.ToLower(strings.TrimSpace(class))
	for _, candidate := range b.Classes {
		if strings.ToLower(strings.TrimSpace(candidate)) == normalized {
			return true
		}
	}
	return false
}

// AlertThreshold returns how long a vehicle of the given class may go without a charge.
func (b BatteryConfig) AlertThreshold(class string) time.Duration {
	days := b.DefaultAlertDays
	if v, ok := b.AlertDays[strings.ToLower(strings.TrimSpace(class))]; ok && v > 0 {
		days = v
	}
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

type CustodyConfig struct {
	RecipientLocation     string   `envconfig:"VEHICLESYNC_CUSTODY_RECIPIENT_LOCATION" default:"customer"`
	RequiredDeliveryItems []string `envconfig:"VEHICLESYNC_CUSTODY_REQUIRED_ITEMS" default:"key-1,key-2,circulation-permit,technical-sheet"`
}

type PhotographersConfig struct {
	StatsWindow time.Duration `envconfig:"VEHICLESYNC_PHOTOGRAPHERS_STATS_WINDOW" default:"720h"`
	Rebalance   bool          `envconfig:"VEHICLESYNC_PHOTOGRAPHERS_CRON_REBALANCE" default:"true"`
}

type LocksConfig struct {
	VehicleTTL   time.Duration `envconfig:"VEHICLESYNC_LOCK_VEHICLE_TTL" default:"30s"`
	IngestionTTL time.Duration `envconfig:"VEHICLESYNC_LOCK_INGESTION_TTL" default:"1h"`
	CronTTL      time.Duration `envconfig:"VEHICLESYNC_LOCK_CRON_TTL" default:"7h"`
	CronInterval time.Duration `envconfig:"VEHICLESYNC_CRON_INTERVAL" default:"8h"`
	CronJobLimit time.Duration `envconfig:"VEHICLESYNC_CRON_JOB_TIMEOUT" default:"1h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"VEHICLESYNC_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"VEHICLESYNC_GCP_CREDENTIALS_JSON"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"VEHICLESYNC_GCS_BUCKET_NAME"`
	SnapshotsPath string `envconfig:"VEHICLESYNC_GCS_SNAPSHOTS_PATH" default:"snapshots"`
}

type PubSubConfig struct {
	LifecycleTopic        string `envconfig:"VEHICLESYNC_PUBSUB_LIFECYCLE_TOPIC" default:"vehicle-lifecycle-events"`
	LifecycleSubscription string `envconfig:"VEHICLESYNC_PUBSUB_LIFECYCLE_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VEHICLESYNC_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VEHICLESYNC_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VEHICLESYNC_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"VEHICLESYNC_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetention   int `envconfig:"VEHICLESYNC_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`

	PublishGuardTTL time.Duration `envconfig:"VEHICLESYNC_OUTBOX_PUBLISH_GUARD_TTL" default:"72h"`
	PublishTimeout  time.Duration `envconfig:"VEHICLESYNC_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:vehiclesync.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
