package config

import "time"

var (
	ServiceVersion string
	CommitSHA      string
)

type (
	ServiceConfig struct {
		App       App       `json:"app"`
		Database  Database  `json:"database"`
		Logging   Logging   `json:"logging"`
		Retention Retention `json:"retention"`
	}

	App struct {
		ServiceName    string `envconfig:"APP_SERVICE_NAME" default:"registry" json:"service_name"`
		APIVersion     string `envconfig:"APP_API_VERSION" default:"v1" json:"api_version"`
		ServiceVersion string `json:"service_version,omitempty"`
		CommitSHA      string `json:"commit_sha,omitempty"`
		Environment    string `envconfig:"APP_ENVIRONMENT" default:"development" json:"environment"`
	}

	Database struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            uint          `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"registry" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"password,omitempty"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxConnections  int           `envconfig:"POSTGRES_MAX_CONNECTIONS" default:"25" json:"max_connections"`
		MinConnections  int           `envconfig:"POSTGRES_MIN_CONNECTIONS" default:"5" json:"min_connections"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		MaxConnLifetime time.Duration `envconfig:"POSTGRES_MAX_CONN_LIFETIME" default:"1h" json:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `envconfig:"POSTGRES_MAX_CONN_IDLE_TIME" default:"30m" json:"max_conn_idle_time"`
	}

	Logging struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOG_FORMAT" default:"json" json:"format"`
	}

	// Retention bounds how far back non-time filters may reach on history
	// data. The window is converted to an absolute limit at query time.
	Retention struct {
		Window time.Duration `envconfig:"RETENTION_WINDOW" default:"2160h" json:"window"`
	}
)

// LimitDate resolves the retention window to the oldest timestamp non-time
// filters may still query.
func (r Retention) LimitDate(now time.Time) time.Time {
	return now.Add(-r.Window)
}
