// Package credential supplies the Census API key to the client without
// reaching for process-wide state.
package credential

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/ini.v1"
)

// ErrNoKey is returned when no provider can supply an API key.
var ErrNoKey = eris.New("credential: no census api key")

// Provider returns the Census API key.
type Provider interface {
	APIKey(ctx context.Context) (string, error)
	Name() string
}

// Static serves a key held in configuration.
type Static string

// APIKey returns the configured key, or ErrNoKey when it is empty.
func (s Static) APIKey(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoKey
	}
	return string(s), nil
}

// Name identifies the provider in logs.
func (s Static) Name() string { return "config" }

// SecretsFile reads the key from an INI file with a [CENSUS_API] section
// holding census_api_key.
type SecretsFile struct {
	Path    string
	Section string
	Key     string
}

// NewSecretsFile returns a SecretsFile using the standard section and key names.
func NewSecretsFile(path string) *SecretsFile {
	return &SecretsFile{Path: path, Section: "CENSUS_API", Key: "census_api_key"}
}

// APIKey reads the key from the file. A missing file or key is ErrNoKey.
func (s *SecretsFile) APIKey(context.Context) (string, error) {
	if s.Path == "" {
		return "", ErrNoKey
	}

	f, err := ini.Load(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoKey
		}
		return "", eris.Wrapf(err, "credential: read %s", s.Path)
	}

	sec, err := f.GetSection(s.Section)
	if err != nil {
		return "", eris.Wrapf(ErrNoKey, "credential: section [%s] missing from %s", s.Section, s.Path)
	}

	key := strings.TrimSpace(sec.Key(s.Key).String())
	if key == "" {
		return "", eris.Wrapf(ErrNoKey, "credential: %s missing from [%s] in %s", s.Key, s.Section, s.Path)
	}
	return key, nil
}

// Name identifies the provider and its path in logs.
func (s *SecretsFile) Name() string { return "secrets file " + s.Path }

// Chain tries each provider in order and returns the first key found.
type Chain []Provider

// APIKey returns the first key any provider supplies. ErrNoKey means none did.
func (c Chain) APIKey(ctx context.Context) (string, error) {
	tried := make([]string, 0, len(c))
	for _, p := range c {
		key, err := p.APIKey(ctx)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrNoKey) {
			return "", err
		}
		tried = append(tried, p.Name())
	}
	return "", eris.Wrapf(ErrNoKey, "credential: tried %s", strings.Join(tried, ", "))
}

// Name identifies the chain in logs.
func (c Chain) Name() string { return "chain" }
