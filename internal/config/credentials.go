package config

import (
	"fmt"
	"os"
	"strings"
)

// Credentials are the resolved login for a profile.
type Credentials struct {
	Username string
	Password string
}

// ResolveCredentials turns the profile's credential reference into a password.
// Supported references: env:VAR, file:/path, or a bare environment variable name.
func ResolveCredentials(p EnvironmentProfile) (Credentials, error) {
	ref := strings.TrimSpace(p.Credential)
	var secret string
	switch {
	case strings.HasPrefix(ref, "file:"):
		path := strings.TrimPrefix(ref, "file:")
		data, err := os.ReadFile(path)
		if err != nil {
			return Credentials{}, fmt.Errorf("reading credential for %s: %w", p.Name, err)
		}
		secret = strings.TrimRight(string(data), "\r\n")
	default:
		name := strings.TrimPrefix(ref, "env:")
		v, ok := os.LookupEnv(name)
		if !ok {
			return Credentials{}, fmt.Errorf("credential for %s: environment variable %s is not set", p.Name, name)
		}
		secret = v
	}
	if secret == "" {
		return Credentials{}, fmt.Errorf("credential for %s is empty", p.Name)
	}
	return Credentials{Username: p.Username, Password: secret}, nil
}
