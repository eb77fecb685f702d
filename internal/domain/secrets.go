package domain

import "fmt"

// Secret bundle field names.
const (
	SecretWeatherAPIKey   = "weather_api_key"
	SecretAccessKeyID     = "access_key_id"
	SecretSecretAccessKey = "secret_access_key"
)

// SecretBundle maps secret names to values. It is resolved once per run and
// never mutated afterwards.
type SecretBundle map[string]string

// StorageCredentials authenticate object store writes.
type StorageCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// WeatherAPIKey returns the OpenWeatherMap key.
func (b SecretBundle) WeatherAPIKey() (string, error) {
	return b.lookup(SecretWeatherAPIKey)
}

// StorageCredentials returns the object store key pair.
func (b SecretBundle) StorageCredentials() (StorageCredentials, error) {
	id, err := b.lookup(SecretAccessKeyID)
	if err != nil {
		return StorageCredentials{}, err
	}
	secret, err := b.lookup(SecretSecretAccessKey)
	if err != nil {
		return StorageCredentials{}, err
	}
	return StorageCredentials{AccessKeyID: id, SecretAccessKey: secret}, nil
}

func (b SecretBundle) lookup(name string) (string, error) {
	v, ok := b[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: field %q not in bundle", ErrSecretUnavailable, name)
	}
	return v, nil
}
