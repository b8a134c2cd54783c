// Package cfg loads the daemon configuration file.
package cfg

import (
	"io"

	"github.com/pelletier/go-toml"
)

type Config struct {
	HTTPListenAddr            string      `toml:"http_server_listen_addr"`
	HTTPSListenAddr           string      `toml:"https_server_listen_addr"`
	HTTPSCertFile             string      `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string      `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string      `toml:"github_webhook_endpoint"`
	HTTPMetricsEndpoint       string      `toml:"metrics_endpoint"`
	GithubWebHookSecret       string      `toml:"github_webhook_secret"`
	GithubAPIToken            string      `toml:"github_api_token"`
	CommitStatusContext       string      `toml:"commit_status_context"`
	LogFormat                 string      `toml:"log_format"`
	LogTimeKey                string      `toml:"log_time_key"`
	LogLevel                  string      `toml:"log_level"`
	Translation               Translation `toml:"translation"`
}

// Translation configures the translation gateway of the daemon.
// The per-repository project API key is not configured here, it comes from
// the repository's own configuration file.
type Translation struct {
	// ProviderURL is the endpoint of the batch translation service.
	ProviderURL string `toml:"provider_url"`
	// UseStub selects the placeholder translation gateway instead of the
	// remote provider. It must be enabled explicitly, it is intended for
	// testing and evaluation setups only.
	UseStub bool `toml:"use_stub"`
	// CacheSize is the max. number of cached translations, 0 uses the
	// default size.
	CacheSize int `toml:"cache_size"`
}

func Load(reader io.Reader) (*Config, error) {
	result := Config{
		HTTPGithubWebhookEndpoint: "/listener/github",
		HTTPMetricsEndpoint:       "/metrics",
		LogFormat:                 "logfmt",
		LogTimeKey:                "time_iso8601",
		LogLevel:                  "info",
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}
