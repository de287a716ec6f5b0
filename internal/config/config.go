package config

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	CorsConfig
	DatabaseConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Cors
	Database
}

func New() Config {
	return mainConfig{}
}
