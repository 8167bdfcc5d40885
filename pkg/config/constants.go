package config

// EnvPrefix scopes every environment variable this service reads.
const EnvPrefix = "CORALDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv    = "CORALDESK_APP_ENV"
	EnvPort      = "CORALDESK_APP_PORT"
	EnvDBDSN     = "CORALDESK_DB_DSN"
	EnvDBHost    = "CORALDESK_DB_HOST"
	EnvDBUser    = "CORALDESK_DB_USER"
	EnvDBName    = "CORALDESK_DB_NAME"
	EnvRedisURL  = "CORALDESK_REDIS_URL"
	EnvJWTSecret = "CORALDESK_JWT_SECRET"
	EnvJWTIssuer = "CORALDESK_JWT_ISSUER"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
