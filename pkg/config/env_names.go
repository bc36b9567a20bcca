package config

const (
	EnvPrefix = "scrapline"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SCRAPLINE_DB_DSN"
	EnvDBHost = "SCRAPLINE_DB_HOST"
	EnvDBUser = "SCRAPLINE_DB_USER"
	EnvDBName = "SCRAPLINE_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
