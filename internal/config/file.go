package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileValues is the YAML shape of a client configuration file. Unset fields
// fall back to the environment-variable configuration.
type fileValues struct {
	AppName string `yaml:"app_name"`
	Env     string `yaml:"env"`
	API     struct {
		BaseURL string `yaml:"base_url"`
		Origin  string `yaml:"origin"`
	} `yaml:"api"`
	TokenStore struct {
		Path string `yaml:"path"`
		Key  string `yaml:"key"`
	} `yaml:"token_store"`
	Transport struct {
		CSRFCookie     string   `yaml:"csrf_cookie"`
		ContainerHosts []string `yaml:"container_hosts"`
	} `yaml:"transport"`
}

type FileConfig struct {
	EnvVars
	values fileValues
}

var _ Config = &FileConfig{}

// LoadFile reads a YAML configuration file. Values present in the file win
// over environment variables; absent values defer to EnvVars defaults.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[LoadFile] read config file")
	}

	fc := &FileConfig{}
	if err := yaml.Unmarshal(data, &fc.values); err != nil {
		return nil, errors.Wrap(err, "[LoadFile] parse config file")
	}
	return fc, nil
}

func (fc *FileConfig) GetAppName() string {
	if fc.values.AppName != "" {
		return fc.values.AppName
	}
	return fc.EnvVars.GetAppName()
}

func (fc *FileConfig) GetEnv() string {
	if fc.values.Env != "" {
		return fc.values.Env
	}
	return fc.EnvVars.GetEnv()
}

func (fc *FileConfig) GetAPIBaseURL() string {
	if fc.values.API.BaseURL != "" {
		return fc.values.API.BaseURL
	}
	return fc.EnvVars.GetAPIBaseURL()
}

func (fc *FileConfig) GetOrigin() string {
	if fc.values.API.Origin != "" {
		return fc.values.API.Origin
	}
	return fc.EnvVars.GetOrigin()
}

func (fc *FileConfig) GetTokenStorePath() string {
	if fc.values.TokenStore.Path != "" {
		return fc.values.TokenStore.Path
	}
	return fc.EnvVars.GetTokenStorePath()
}

func (fc *FileConfig) GetTokenStoreKey() string {
	if fc.values.TokenStore.Key != "" {
		return fc.values.TokenStore.Key
	}
	return fc.EnvVars.GetTokenStoreKey()
}

func (fc *FileConfig) GetCSRFCookieName() string {
	if fc.values.Transport.CSRFCookie != "" {
		return fc.values.Transport.CSRFCookie
	}
	return fc.EnvVars.GetCSRFCookieName()
}

func (fc *FileConfig) GetContainerHosts() []string {
	if len(fc.values.Transport.ContainerHosts) > 0 {
		return fc.values.Transport.ContainerHosts
	}
	return fc.EnvVars.GetContainerHosts()
}
