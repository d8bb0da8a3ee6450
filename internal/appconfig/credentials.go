package appconfig

import (
	"fmt"
	"os"

	"github.com/markstefanovic/poa/internal/poaerr"
)

// CredentialLookup resolves a keyring entry name (the config file's
// keyring-db-username-entry / keyring-db-password-entry fields) to an
// actual secret value. Credential storage itself is named as an
// external collaborator in spec.md §1; see SPEC_FULL.md §6 for why the
// shipped implementation uses environment variables rather than an OS
// keyring binding.
type CredentialLookup interface {
	Lookup(entry string) (string, error)
}

// EnvCredentialLookup resolves entry to the value of the environment
// variable POA_CRED_<entry>.
type EnvCredentialLookup struct{}

func (EnvCredentialLookup) Lookup(entry string) (string, error) {
	if entry == "" {
		return "", poaerr.New(poaerr.KindConfigError, "empty keyring entry name", nil)
	}
	envName := "POA_CRED_" + entry
	val, ok := os.LookupEnv(envName)
	if !ok {
		return "", poaerr.New(
			poaerr.KindConfigError,
			fmt.Sprintf("no credential found for entry %q (expected environment variable %s)", entry, envName),
			map[string]any{"entry": entry, "env_var": envName},
		)
	}
	return val, nil
}
