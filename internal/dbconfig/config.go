// Package dbconfig holds the per-database connection configuration this
// system resolves from the JSON config file (internal/appconfig) into a
// concrete, dialect-tagged struct, grounded on sqldef's database.Config
// (database/database.go) generalized from sqldef's four SQL-diffing
// dialects to poa's four source APIs plus one destination dialect.
package dbconfig

import (
	"fmt"

	"github.com/markstefanovic/poa/internal/poaerr"
)

// API is the dialect tag read from the config file's "api" field.
type API string

const (
	APIHH      API = "hh"
	APIMSSQL   API = "mssql"
	APIPyODBC  API = "pyodbc"
	APIPsycopg API = "psycopg"
)

func ParseAPI(s string) (API, error) {
	switch API(s) {
	case APIHH, APIMSSQL, APIPyODBC, APIPsycopg:
		return API(s), nil
	default:
		return "", poaerr.New(
			poaerr.KindUnrecognizedDatabaseAPI,
			fmt.Sprintf("unrecognized database api %q", s),
			map[string]any{"api": s},
		)
	}
}

// Config is one resolved entry from the config file's "databases" array,
// with credentials already resolved (internal/appconfig.CredentialLookup)
// and a connection string either passed through or built from the
// discrete host/db-name/user/password fields.
type Config struct {
	Name             string
	API              API
	Host             string
	DbName           string
	User             string
	Password         string
	ConnectionString string
}

// DSN returns the driver-ready connection string for Config, building one
// from the discrete fields when ConnectionString was not supplied
// directly in the config file.
func (c Config) DSN() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}
	switch c.API {
	case APIPsycopg:
		return fmt.Sprintf(
			"host=%s dbname=%s user=%s password=%s sslmode=disable",
			c.Host, c.DbName, c.User, c.Password,
		), nil
	case APIMSSQL:
		return fmt.Sprintf(
			"server=%s;database=%s;user id=%s;password=%s",
			c.Host, c.DbName, c.User, c.Password,
		), nil
	case APIHH, APIPyODBC:
		return fmt.Sprintf(
			"DRIVER={ODBC Driver 17 for SQL Server};SERVER=%s;DATABASE=%s;UID=%s;PWD=%s",
			c.Host, c.DbName, c.User, c.Password,
		), nil
	default:
		return "", poaerr.New(
			poaerr.KindUnrecognizedDatabaseAPI,
			fmt.Sprintf("cannot build a DSN for api %q", c.API),
			map[string]any{"api": c.API},
		)
	}
}
