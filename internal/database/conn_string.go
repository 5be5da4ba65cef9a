package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/shardline/internal/config"
)

// ApplicationName tags sessions in pg_stat_activity.
const ApplicationName = "shardline"

// BuildConnString builds a postgres:// URL from config. Credentials are
// escaped by net/url; query keys are sorted.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	q.Set("connect_timeout", "10")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
