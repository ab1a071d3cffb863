package config

const (
	EnvPrefix = "VEHICLESYNC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "VEHICLESYNC_APP_ENV"
	EnvPort      = "VEHICLESYNC_APP_PORT"
	EnvDBDSN     = "VEHICLESYNC_DB_DSN"
	EnvDBHost    = "VEHICLESYNC_DB_HOST"
	EnvDBUser    = "VEHICLESYNC_DB_USER"
	EnvDBName    = "VEHICLESYNC_DB_NAME"
	EnvRedisURL  = "VEHICLESYNC_REDIS_URL"
	EnvUseSQLite = "VEHICLESYNC_USE_SQLITE"

	EnvIngestionSourceURL = "VEHICLESYNC_INGESTION_SOURCE_URL"
	EnvIngestionBackdate  = "VEHICLESYNC_INGESTION_BACKDATE_OFFSET"
	EnvBatteryAlertDays   = "VEHICLESYNC_BATTERY_ALERT_DAYS"
	EnvCustodyRequired    = "VEHICLESYNC_CUSTODY_REQUIRED_ITEMS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
