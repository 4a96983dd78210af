package security

import (
	"fmt"
	"os"
)

// Credentials holds the three secrets a device login needs. Any field may be
// empty when the device does not ask for it.
type Credentials struct {
	Username       string
	Password       string
	EnablePassword string
}

// Wipe clears the credential strings. Callers should invoke it once the
// login has completed.
func (c *Credentials) Wipe() {
	WipeString(&c.Username)
	WipeString(&c.Password)
	WipeString(&c.EnablePassword)
}

// Resolver loads device credentials, preferring environment variables and
// falling back to the OS keyring when enabled.
type Resolver struct {
	Store      *KeyringStore
	UseKeyring bool
}

// Resolve looks up credentials for a device. Env var names come from
// configuration; empty names skip that source. The keyring is consulted only
// for fields the environment left empty.
func (r *Resolver) Resolve(device, usernameEnv, passwordEnv, enableEnv string) (Credentials, error) {
	creds := Credentials{
		Username:       envValue(usernameEnv),
		Password:       envValue(passwordEnv),
		EnablePassword: envValue(enableEnv),
	}

	if !r.UseKeyring || r.Store == nil || !r.Store.IsEnabled() {
		return creds, nil
	}

	fields := []struct {
		field string
		dst   *string
	}{
		{FieldUsername, &creds.Username},
		{FieldPassword, &creds.Password},
		{FieldEnablePassword, &creds.EnablePassword},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := r.Store.GetCredential(device, f.field)
		if err != nil {
			return creds, fmt.Errorf("resolve %s for %q: %w", f.field, device, err)
		}
		*f.dst = v
	}
	return creds, nil
}

func envValue(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
