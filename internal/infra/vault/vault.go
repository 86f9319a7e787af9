// Package vault abstracts where broker credentials come from so the
// transports never read the environment directly.
package vault

import "os"

type SecretStore interface {
	// Get returns the secret for key, or "" when it is not set.
	Get(key string) (string, error)
}

// EnvStore resolves secrets from environment variables, optionally
// under a prefix ("QUANTFLOW_" turns "KAFKA_PASSWORD" into
// "QUANTFLOW_KAFKA_PASSWORD").
type EnvStore struct {
	Prefix string
}

func (s EnvStore) Get(key string) (string, error) {
	return os.Getenv(s.Prefix + key), nil
}

// Static serves fixed values; tests use it.
type Static map[string]string

func (s Static) Get(key string) (string, error) { return s[key], nil }
