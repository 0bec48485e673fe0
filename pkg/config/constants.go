package config

const (
	EnvPrefix = "SELLERHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:sellerhub.db?cache=shared&_busy_timeout=5000"
)

const (
	EnvAppEnv = "SELLERHUB_APP_ENV"
	EnvPort   = "SELLERHUB_APP_PORT"

	EnvDBDSN    = "SELLERHUB_DB_DSN"
	EnvDBDriver = "SELLERHUB_DB_DRIVER"
	EnvDBHost   = "SELLERHUB_DB_HOST"
	EnvDBUser   = "SELLERHUB_DB_USER"
	EnvDBName   = "SELLERHUB_DB_NAME"

	EnvRedisURL = "SELLERHUB_REDIS_URL"

	EnvJWTSecret  = "SELLERHUB_JWT_SECRET"
	EnvJWTIssuer  = "SELLERHUB_JWT_ISSUER"
	EnvJWTExpMins = "SELLERHUB_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "SELLERHUB_USE_SQLITE"

	EnvPubSubDomainTopic = "SELLERHUB_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
