package settings

import (
	"context"

	"github.com/kimhsiao/jour/internal/models"
)

// Config is the typed snapshot of every configuration setting the
// application reads. It replaces per-key lookups scattered over call sites:
// load it once per request, pass it down.
//
// Encrypted-at-rest fields: CaldavPassword, OpenIDClientSecret. Everything
// else is stored verbatim.
type Config struct {
	CaldavURL           string
	CaldavUsername      string
	CaldavPassword      string
	CaldavCollectionURL string

	OpenIDClientID          string
	OpenIDClientSecret      string
	OpenIDDiscoveryDocument string

	Scheme    string
	UserEmail string
}

// Load reads the full configuration snapshot from the store.
func (s *Store) Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}

	plain := []struct {
		key  string
		dest *string
	}{
		{models.SettingCaldavURL, &cfg.CaldavURL},
		{models.SettingCaldavUsername, &cfg.CaldavUsername},
		{models.SettingCaldavCollectionURL, &cfg.CaldavCollectionURL},
		{models.SettingOpenIDClientID, &cfg.OpenIDClientID},
		{models.SettingOpenIDDiscoveryDocument, &cfg.OpenIDDiscoveryDocument},
		{models.SettingScheme, &cfg.Scheme},
		{models.SettingUserEmail, &cfg.UserEmail},
	}
	for _, p := range plain {
		v, err := s.GetPlain(ctx, p.key)
		if err != nil {
			return nil, err
		}
		*p.dest = v
	}

	encrypted := []struct {
		key  string
		dest *string
	}{
		{models.SettingCaldavPassword, &cfg.CaldavPassword},
		{models.SettingOpenIDClientSecret, &cfg.OpenIDClientSecret},
	}
	for _, e := range encrypted {
		v, err := s.GetEncrypted(ctx, e.key)
		if err != nil {
			return nil, err
		}
		*e.dest = v
	}

	return cfg, nil
}

// RemoteConfigured reports whether the CalDAV connection settings are all
// present.
func (c *Config) RemoteConfigured() bool {
	return c.CaldavURL != "" && c.CaldavUsername != "" &&
		c.CaldavPassword != "" && c.CaldavCollectionURL != ""
}

// SaveCredentials stores the CalDAV server URL, username and password
// (password encrypted at rest).
func (s *Store) SaveCredentials(ctx context.Context, url, username, password string) error {
	if err := s.SetPlain(ctx, models.SettingCaldavURL, url); err != nil {
		return err
	}
	if err := s.SetPlain(ctx, models.SettingCaldavUsername, username); err != nil {
		return err
	}
	return s.SetEncrypted(ctx, models.SettingCaldavPassword, password)
}

// SaveCollection stores the journal collection URL.
func (s *Store) SaveCollection(ctx context.Context, collectionURL string) error {
	return s.SetPlain(ctx, models.SettingCaldavCollectionURL, collectionURL)
}

// SaveOpenID stores the identity-provider settings (client secret encrypted
// at rest).
func (s *Store) SaveOpenID(ctx context.Context, clientID, clientSecret, discoveryDocument string) error {
	if err := s.SetPlain(ctx, models.SettingOpenIDClientID, clientID); err != nil {
		return err
	}
	if err := s.SetEncrypted(ctx, models.SettingOpenIDClientSecret, clientSecret); err != nil {
		return err
	}
	return s.SetPlain(ctx, models.SettingOpenIDDiscoveryDocument, discoveryDocument)
}
