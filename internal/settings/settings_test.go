// Package settings tests for the encrypted settings store.
package settings

import (
	"context"
	"sync"
	"testing"

	"github.com/kimhsiao/jour/internal/crypto"
	"github.com/kimhsiao/jour/internal/db"
	apperrors "github.com/kimhsiao/jour/internal/errors"
	"github.com/kimhsiao/jour/internal/models"
)

func newTestStore(t *testing.T) (*Store, *db.Repository) {
	t.Helper()

	d, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := db.NewMigrator(d.DB).Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}
	repo := db.NewRepository(d.DB)
	return NewStore(repo), repo
}

// TestPlainRoundTrip verifies verbatim storage and the empty default.
func TestPlainRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetPlain(ctx, models.SettingCaldavURL)
	if err != nil {
		t.Fatalf("GetPlain() failed: %v", err)
	}
	if got != "" {
		t.Errorf("GetPlain(absent) = %q, want empty", got)
	}

	if err := store.SetPlain(ctx, models.SettingCaldavURL, "https://dav.example.com"); err != nil {
		t.Fatalf("SetPlain() failed: %v", err)
	}
	got, _ = store.GetPlain(ctx, models.SettingCaldavURL)
	if got != "https://dav.example.com" {
		t.Errorf("GetPlain() = %q, want stored value", got)
	}
}

// TestEncryptedRoundTrip verifies encryption at rest and exact recovery.
func TestEncryptedRoundTrip(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	if err := store.SetEncrypted(ctx, models.SettingCaldavPassword, "hunter2"); err != nil {
		t.Fatalf("SetEncrypted() failed: %v", err)
	}

	// The raw row must not contain the plaintext.
	raw, err := repo.GetSetting(ctx, models.SettingCaldavPassword)
	if err != nil {
		t.Fatalf("GetSetting() failed: %v", err)
	}
	if raw == "" || raw == "hunter2" {
		t.Errorf("stored value %q is not encrypted", raw)
	}

	got, err := store.GetEncrypted(ctx, models.SettingCaldavPassword)
	if err != nil {
		t.Fatalf("GetEncrypted() failed: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("GetEncrypted() = %q, want %q", got, "hunter2")
	}
}

// TestEncryptedAbsent verifies an unset key reads as empty, not as an error.
func TestEncryptedAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetEncrypted(context.Background(), models.SettingOpenIDClientSecret)
	if err != nil {
		t.Fatalf("GetEncrypted(absent) failed: %v", err)
	}
	if got != "" {
		t.Errorf("GetEncrypted(absent) = %q, want empty", got)
	}
}

// TestEncryptedKeyMismatch verifies a rotated-away key surfaces as a
// DecryptionError.
func TestEncryptedKeyMismatch(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	if err := store.SetEncrypted(ctx, models.SettingCaldavPassword, "hunter2"); err != nil {
		t.Fatalf("SetEncrypted() failed: %v", err)
	}

	// Simulate an out-of-band key rotation.
	other, _ := crypto.NewKey()
	if err := repo.SetSetting(ctx, models.SettingSecretKey, crypto.EncodeKey(other)); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}

	_, err := store.GetEncrypted(ctx, models.SettingCaldavPassword)
	if err == nil {
		t.Fatal("GetEncrypted() with the wrong key should fail")
	}
	if !apperrors.Is(err, apperrors.ErrDecryption) {
		t.Errorf("GetEncrypted() error = %v, want DECRYPTION_ERROR", err)
	}
}

// TestSecretKeyStable verifies the key is generated once and reused.
func TestSecretKeyStable(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	k1, err := store.SecretKey(ctx)
	if err != nil {
		t.Fatalf("SecretKey() failed: %v", err)
	}
	if len(k1) != crypto.KeySize {
		t.Errorf("key length = %d, want %d", len(k1), crypto.KeySize)
	}

	k2, err := store.SecretKey(ctx)
	if err != nil {
		t.Fatalf("second SecretKey() failed: %v", err)
	}
	if string(k1) != string(k2) {
		t.Error("SecretKey() returned a different key on the second call")
	}
}

// TestSecretKeyConcurrentFirstUse verifies concurrent first-time callers
// converge on one key.
func TestSecretKeyConcurrentFirstUse(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	const callers = 8
	keys := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := store.SecretKey(ctx)
			if err != nil {
				t.Errorf("SecretKey() failed: %v", err)
				return
			}
			keys[i] = string(k)
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if keys[i] != keys[0] {
			t.Fatalf("caller %d got a different key", i)
		}
	}

	// Exactly one key row persisted.
	stored, err := repo.GetSetting(ctx, models.SettingSecretKey)
	if err != nil {
		t.Fatalf("GetSetting() failed: %v", err)
	}
	if stored == "" {
		t.Fatal("no secret key persisted")
	}
	decoded, err := crypto.DecodeKey(stored)
	if err != nil {
		t.Fatalf("DecodeKey() failed: %v", err)
	}
	if string(decoded) != keys[0] {
		t.Error("persisted key differs from the key callers received")
	}
}

// TestLoadConfig verifies the typed snapshot covers plain and encrypted
// fields.
func TestLoadConfig(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveCredentials(ctx, "https://dav.example.com", "erin", "hunter2"); err != nil {
		t.Fatalf("SaveCredentials() failed: %v", err)
	}
	if err := store.SaveCollection(ctx, "https://dav.example.com/journals/"); err != nil {
		t.Fatalf("SaveCollection() failed: %v", err)
	}
	if err := store.SaveOpenID(ctx, "client-1", "s3cret", "https://op.example.com/.well-known/openid-configuration"); err != nil {
		t.Fatalf("SaveOpenID() failed: %v", err)
	}
	if err := store.SetPlain(ctx, models.SettingUserEmail, "erin@example.com"); err != nil {
		t.Fatalf("SetPlain() failed: %v", err)
	}

	cfg, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CaldavURL != "https://dav.example.com" ||
		cfg.CaldavUsername != "erin" ||
		cfg.CaldavPassword != "hunter2" ||
		cfg.CaldavCollectionURL != "https://dav.example.com/journals/" {
		t.Errorf("CalDAV config = %+v, want saved values", cfg)
	}
	if cfg.OpenIDClientID != "client-1" || cfg.OpenIDClientSecret != "s3cret" {
		t.Errorf("OpenID config = %+v, want saved values", cfg)
	}
	if cfg.UserEmail != "erin@example.com" {
		t.Errorf("UserEmail = %q, want saved value", cfg.UserEmail)
	}
	if !cfg.RemoteConfigured() {
		t.Error("RemoteConfigured() = false after saving all remote settings")
	}
}

// TestRemoteConfigured verifies partial configuration reads as incomplete.
func TestRemoteConfigured(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cfg, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.RemoteConfigured() {
		t.Error("RemoteConfigured() = true on an empty store")
	}

	if err := store.SaveCredentials(ctx, "https://dav.example.com", "erin", "hunter2"); err != nil {
		t.Fatalf("SaveCredentials() failed: %v", err)
	}
	cfg, _ = store.Load(ctx)
	if cfg.RemoteConfigured() {
		t.Error("RemoteConfigured() = true without a collection URL")
	}
}
