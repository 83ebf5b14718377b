package config

const (
	EnvPrefix = "ARCHIVEMINT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "ARCHIVEMINT_APP_ENV"
	EnvPort          = "ARCHIVEMINT_APP_PORT"
	EnvDBDSN         = "ARCHIVEMINT_DB_DSN"
	EnvDBHost        = "ARCHIVEMINT_DB_HOST"
	EnvDBUser        = "ARCHIVEMINT_DB_USER"
	EnvDBName        = "ARCHIVEMINT_DB_NAME"
	EnvRedisURL      = "ARCHIVEMINT_REDIS_URL"
	EnvJWTSecret     = "ARCHIVEMINT_JWT_SECRET"
	EnvJWTIssuer     = "ARCHIVEMINT_JWT_ISSUER"
	EnvArweaveWallet = "ARCHIVEMINT_ARWEAVE_WALLET_ADDRESS"
	EnvMonitorSecret = "ARCHIVEMINT_MONITOR_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
