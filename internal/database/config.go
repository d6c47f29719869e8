package database

import (
	"net/url"
)

type DBConfig struct {
	Driver     string
	User       string
	Password   string
	Host       string
	Port       string
	DBName     string
	SQLitePath string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// TargetDSN builds a URL encoded postgres DSN.
func (c DBConfig) TargetDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.DBName,
	}
	// sslmode=disable for local development
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

// SQLiteDSN enables WAL and foreign keys; offers and price records rely on
// the ON DELETE CASCADE of products.
func (c DBConfig) SQLiteDSN() string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "1")
	q.Set("_busy_timeout", "5000")
	return "file:" + c.SQLitePath + "?" + q.Encode()
}
