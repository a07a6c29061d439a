package jira

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const credentialServiceName = "brancho.jira"

func credentialAccount(host, username string) string {
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	return username + "@" + strings.TrimRight(host, "/")
}

// LoadCredential retrieves a stored API token from the OS keychain.
func LoadCredential(host, username string) (string, error) {
	if host == "" || username == "" {
		return "", keyring.ErrNotFound
	}
	return keyring.Get(credentialServiceName, credentialAccount(host, username))
}

// StoreCredential persists an API token into the OS keychain.
func StoreCredential(host, username, credential string) error {
	if host == "" || username == "" || credential == "" {
		return keyring.ErrNotFound
	}
	return keyring.Set(credentialServiceName, credentialAccount(host, username), credential)
}

// DeleteCredential removes a token from the OS keychain.
func DeleteCredential(host, username string) error {
	if host == "" || username == "" {
		return keyring.ErrNotFound
	}
	return keyring.Delete(credentialServiceName, credentialAccount(host, username))
}

func (c Connection) credential() (string, error) {
	if c.Credential != "" {
		return c.Credential, nil
	}
	credential, err := LoadCredential(c.Host, c.Username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("jira: no credential for %s (set jira.credential or run 'brancho auth')", credentialAccount(c.Host, c.Username))
	}
	if err != nil {
		return "", fmt.Errorf("jira: read keychain: %w", err)
	}
	return credential, nil
}
