package config

import (
	"os"
	"strings"
)

const (
	apiURLEnvVar    = "EDUKITE_API_URL"
	originEnvVar    = "EDUKITE_ORIGIN"
	appNameVar      = "APP_NAME"
	storePathEnvVar = "EDUKITE_TOKEN_STORE"
	storeKeyEnvVar  = "EDUKITE_STORE_KEY"
	csrfCookieVar   = "EDUKITE_CSRF_COOKIE"
	containerHosts  = "EDUKITE_CONTAINER_HOSTS"
)

type EnvVars struct{}

var _ Config = mainConfig{}

// GetAPIBaseURL returns the explicitly configured backend base. Empty means
// unconfigured - the endpoint resolver decides what that means per environment.
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiURLEnvVar, "")
}

// GetOrigin returns the origin a relative base is resolved against
// (same-origin reverse-proxy deployments).
func (EnvVars) GetOrigin() string {
	return GetEnv(originEnvVar, "")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "EduKite Client")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetTokenStorePath() string {
	return GetEnv(storePathEnvVar, "./data/tokens.enc")
}

// GetTokenStoreKey returns the base64 encoded 32-byte key used to seal
// the token store at rest.
func (EnvVars) GetTokenStoreKey() string {
	return GetEnv(storeKeyEnvVar, "")
}

func (EnvVars) GetCSRFCookieName() string {
	return GetEnv(csrfCookieVar, "csrf_token")
}

// GetContainerHosts returns hostnames that are substituted with loopback when
// a request to them fails at the transport level (docker-compose service
// names that do not resolve outside the compose network).
func (EnvVars) GetContainerHosts() []string {
	raw := GetEnv(containerHosts, "backend,app,host.docker.internal")
	parts := strings.Split(raw, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.TrimSpace(p); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
