package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// qualified env tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "FILMFUSION_APP_ENV"
	EnvPort      = "FILMFUSION_APP_PORT"
	EnvDBDSN     = "FILMFUSION_DB_DSN"
	EnvDBHost    = "FILMFUSION_DB_HOST"
	EnvDBUser    = "FILMFUSION_DB_USER"
	EnvDBName    = "FILMFUSION_DB_NAME"
	EnvRedisURL  = "FILMFUSION_REDIS_URL"
	EnvJWTSecret = "FILMFUSION_JWT_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
