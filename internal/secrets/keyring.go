package secrets

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/zalando/go-keyring"
)

// KeyringProvider reads secrets from the OS keychain. Intended for local
// development.
type KeyringProvider struct {
	Service string
}

// NewKeyringProvider creates a provider scoped to the given keychain service.
func NewKeyringProvider(service string) *KeyringProvider {
	return &KeyringProvider{Service: service}
}

// Get implements Provider.
func (p *KeyringProvider) Get(_ context.Context, name string) (string, error) {
	v, err := keyring.Get(p.Service, name)
	if err != nil {
		return "", eris.Wrapf(err, "keyring: get %s/%s", p.Service, name)
	}
	return v, nil
}

// Set stores a secret in the keychain.
func (p *KeyringProvider) Set(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return eris.New("keyring: secret name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return eris.New("keyring: secret value is empty")
	}
	return eris.Wrapf(keyring.Set(p.Service, name, value), "keyring: set %s/%s", p.Service, name)
}
