// Package settings provides the encrypted key-value settings store.
//
// Every read and write goes straight to the database so out-of-band edits
// (an operator fixing a row by hand) are observed; nothing is cached in
// memory. Credential values are encrypted at rest with a process-wide
// secret key that is itself generated and persisted on first use.
package settings

import (
	"context"
	"errors"

	"github.com/kimhsiao/jour/internal/crypto"
	"github.com/kimhsiao/jour/internal/db"
	apperrors "github.com/kimhsiao/jour/internal/errors"
	"github.com/kimhsiao/jour/internal/models"
)

// Store reads and writes settings through the shared repository.
type Store struct {
	repo *db.Repository
}

// NewStore creates a settings Store over the given repository.
func NewStore(repo *db.Repository) *Store {
	return &Store{repo: repo}
}

// GetPlain returns the stored value for key, or empty string when absent.
func (s *Store) GetPlain(ctx context.Context, key string) (string, error) {
	return s.repo.GetSetting(ctx, key)
}

// SetPlain stores value under key verbatim.
func (s *Store) SetPlain(ctx context.Context, key, value string) error {
	return s.repo.SetSetting(ctx, key, value)
}

// GetEncrypted returns the decrypted value for key, or empty string when
// absent. A stored value that does not decrypt with the current secret key
// surfaces as a DecryptionError: the key was lost or rotated out of band
// and the operator must re-enter the credential.
func (s *Store) GetEncrypted(ctx context.Context, key string) (string, error) {
	envelope, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if envelope == "" {
		return "", nil
	}

	secret, err := s.SecretKey(ctx)
	if err != nil {
		return "", err
	}

	value, err := crypto.DecryptString(envelope, secret)
	if err != nil {
		if errors.Is(err, crypto.ErrInvalidCiphertext) {
			return "", apperrors.Wrap(apperrors.ErrDecryption, "setting "+key, err)
		}
		return "", err
	}
	return value, nil
}

// SetEncrypted encrypts value with the current secret key and stores the
// envelope under key.
func (s *Store) SetEncrypted(ctx context.Context, key, value string) error {
	secret, err := s.SecretKey(ctx)
	if err != nil {
		return err
	}
	envelope, err := crypto.EncryptString(value, secret)
	if err != nil {
		return err
	}
	return s.repo.SetSetting(ctx, key, envelope)
}

// SecretKey returns the process-wide symmetric key, generating and
// persisting a fresh one on first call. The generated candidate is offered
// with a conditional insert, so two concurrent first-time callers both end
// up returning whichever key reached the table first.
func (s *Store) SecretKey(ctx context.Context) ([]byte, error) {
	stored, err := s.repo.GetSetting(ctx, models.SettingSecretKey)
	if err != nil {
		return nil, err
	}
	if stored == "" {
		candidate, err := crypto.NewKey()
		if err != nil {
			return nil, err
		}
		stored, err = s.repo.SetSettingIfAbsent(ctx, models.SettingSecretKey, crypto.EncodeKey(candidate))
		if err != nil {
			return nil, err
		}
	}

	key, err := crypto.DecodeKey(stored)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecryption, "stored secret key is unreadable", err)
	}
	return key, nil
}

// Keys returns every stored setting identifier.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.repo.ListSettingKeys(ctx)
}
