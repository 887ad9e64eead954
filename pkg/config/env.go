package config

const (
	EnvPrefix = "OFICINA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "OFICINA_DB_DSN"
	EnvDBHost = "OFICINA_DB_HOST"
	EnvDBUser = "OFICINA_DB_USER"
	EnvDBName = "OFICINA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
