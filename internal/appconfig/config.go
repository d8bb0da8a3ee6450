// Package appconfig loads the JSON configuration file described in
// spec.md §6: cleanup interval, log retention, batch size, and the list
// of databases this CLI knows how to connect to. Config loading is
// deliberately kept outside the sync/check core (spec.md §1) — this
// package only hands the core a []dbconfig.Config.
//
// Loading is done with spf13/viper (grounded on xataio-pgroll's
// cmd/root.go, which uses viper to bind CLI/env/file configuration),
// generalized from pgroll's env-first style to this system's
// file-first, JSON-only config.
package appconfig

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/markstefanovic/poa/internal/dbconfig"
	"github.com/markstefanovic/poa/internal/poaerr"
)

// File is the decoded shape of the JSON config file.
type File struct {
	SecondsBetweenCleanups int            `mapstructure:"seconds-between-cleanups"`
	DaysLogsToKeep         int            `mapstructure:"days-logs-to-keep"`
	BatchSize              int            `mapstructure:"batch-size"`
	Databases              []DatabaseSpec `mapstructure:"databases"`
}

// DatabaseSpec is one raw entry of File.Databases, before credential
// resolution.
type DatabaseSpec struct {
	Name                   string  `mapstructure:"name"`
	API                    string  `mapstructure:"api"`
	Host                   *string `mapstructure:"host"`
	DbName                 *string `mapstructure:"db-name"`
	KeyringDbUsernameEntry *string `mapstructure:"keyring-db-username-entry"`
	KeyringDbPasswordEntry *string `mapstructure:"keyring-db-password-entry"`
	ConnectionString       *string `mapstructure:"connection-string"`
}

// Load reads and decodes the config file at path.
func Load(path string) (File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return File{}, poaerr.Wrap(poaerr.KindConfigError, err, "failed to read config file", map[string]any{"path": path})
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, poaerr.Wrap(poaerr.KindConfigError, err, "failed to decode config file", map[string]any{"path": path})
	}

	if err := Validate(f); err != nil {
		return File{}, err
	}

	return f, nil
}

// Validate checks the required-top-level-key and connection-string
// invariants from spec.md §6.
func Validate(f File) error {
	if f.SecondsBetweenCleanups <= 0 {
		return poaerr.New(poaerr.KindConfigError, "seconds-between-cleanups must be a positive int", nil)
	}
	if f.DaysLogsToKeep <= 0 {
		return poaerr.New(poaerr.KindConfigError, "days-logs-to-keep must be a positive int", nil)
	}
	if f.BatchSize <= 0 {
		return poaerr.New(poaerr.KindConfigError, "batch-size must be a positive int", nil)
	}
	for _, d := range f.Databases {
		if d.Name == "" {
			return poaerr.New(poaerr.KindConfigError, "a database entry is missing its name", nil)
		}
		if d.ConnectionString == nil || *d.ConnectionString == "" {
			missing := make([]string, 0, 4)
			if d.Host == nil {
				missing = append(missing, "host")
			}
			if d.DbName == nil {
				missing = append(missing, "db-name")
			}
			if d.KeyringDbUsernameEntry == nil {
				missing = append(missing, "keyring-db-username-entry")
			}
			if d.KeyringDbPasswordEntry == nil {
				missing = append(missing, "keyring-db-password-entry")
			}
			if len(missing) > 0 {
				return poaerr.New(
					poaerr.KindConfigError,
					fmt.Sprintf("database %q has no connection-string and is missing: %v", d.Name, missing),
					map[string]any{"database": d.Name, "missing": missing},
				)
			}
		}
	}
	return nil
}

// Resolve finds the named database entry and resolves it to a
// dbconfig.Config, looking up credentials via lookup when a connection
// string was not supplied directly.
func Resolve(f File, name string, lookup CredentialLookup) (dbconfig.Config, error) {
	for _, d := range f.Databases {
		if d.Name != name {
			continue
		}
		api, err := dbconfig.ParseAPI(d.API)
		if err != nil {
			return dbconfig.Config{}, err
		}

		cfg := dbconfig.Config{Name: d.Name, API: api}
		if d.ConnectionString != nil && *d.ConnectionString != "" {
			cfg.ConnectionString = *d.ConnectionString
			return cfg, nil
		}

		cfg.Host = deref(d.Host)
		cfg.DbName = deref(d.DbName)

		user, err := lookup.Lookup(deref(d.KeyringDbUsernameEntry))
		if err != nil {
			return dbconfig.Config{}, poaerr.Wrap(poaerr.KindConfigError, err, "failed to resolve db username", map[string]any{"database": name})
		}
		pass, err := lookup.Lookup(deref(d.KeyringDbPasswordEntry))
		if err != nil {
			return dbconfig.Config{}, poaerr.Wrap(poaerr.KindConfigError, err, "failed to resolve db password", map[string]any{"database": name})
		}
		cfg.User = user
		cfg.Password = pass
		return cfg, nil
	}
	return dbconfig.Config{}, poaerr.New(poaerr.KindConfigError, fmt.Sprintf("no database named %q in config", name), map[string]any{"database": name})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
