package config

type Config interface {
	EnvConfig
	EndpointConfig
	StoreConfig
	TransportConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

// EndpointConfig supplies the values the base endpoint resolver works from.
type EndpointConfig interface {
	GetAPIBaseURL() string
	GetOrigin() string
}

// StoreConfig supplies the secure token store location and encryption key.
type StoreConfig interface {
	GetTokenStorePath() string
	GetTokenStoreKey() string
}

// TransportConfig supplies request dispatcher tunables.
type TransportConfig interface {
	GetCSRFCookieName() string
	GetContainerHosts() []string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
