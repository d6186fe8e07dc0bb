package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrCredentialNotFound is returned when a credential reference points at an
// unset variable or a missing file.
var ErrCredentialNotFound = errors.New("credential not found")

// Credential reference schemes.
const (
	CredentialSchemeEnv  = "env"
	CredentialSchemeFile = "file"
)

// ParseCredentialRef splits a reference of the form "env:NAME" or
// "file:/path/to/secret".
func ParseCredentialRef(ref string) (scheme, value string, err error) {
	scheme, value, ok := strings.Cut(ref, ":")
	if !ok || value == "" {
		return "", "", fmt.Errorf("invalid credential reference %q: want env:NAME or file:PATH", ref)
	}
	switch scheme {
	case CredentialSchemeEnv, CredentialSchemeFile:
		return scheme, value, nil
	default:
		return "", "", fmt.Errorf("invalid credential reference %q: unknown scheme %q", ref, scheme)
	}
}

// ResolveCredential returns the secret a reference points at. An empty
// reference resolves to the empty string. File contents are trimmed of
// surrounding whitespace.
func ResolveCredential(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	scheme, value, err := ParseCredentialRef(ref)
	if err != nil {
		return "", err
	}

	switch scheme {
	case CredentialSchemeEnv:
		secret, ok := os.LookupEnv(value)
		if !ok || secret == "" {
			return "", fmt.Errorf("environment variable %s: %w", value, ErrCredentialNotFound)
		}
		return secret, nil
	default:
		data, err := os.ReadFile(value)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("credential file %s: %w", value, ErrCredentialNotFound)
			}
			return "", fmt.Errorf("failed to read credential file %s: %w", value, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
}
