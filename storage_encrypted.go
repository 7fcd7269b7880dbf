package outfit

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// saltKey holds the scrypt salt next to the encrypted entries.
const saltKey = "__outfit_kdf_salt"

// scrypt parameters for a secret that is re-derived once per process.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptSaltSz = 16
)

// EncryptedStorage seals every value of an inner Storage with
// XChaCha20-Poly1305. The key is derived from a passphrase with scrypt; the
// storage key name is bound as additional data so values cannot be swapped
// between keys.
//
// Values that fail to decrypt (wrong passphrase, tampering) are reported as
// ErrStoreCorrupted.
type EncryptedStorage struct {
	inner      Storage
	passphrase []byte

	mu   sync.Mutex
	salt string
	aead cipher.AEAD
}

// NewEncryptedStorage wraps inner. passphrase must not be empty.
func NewEncryptedStorage(inner Storage, passphrase string) (*EncryptedStorage, error) {
	if passphrase == "" {
		return nil, NewValidationError("passphrase", "must not be empty")
	}
	return &EncryptedStorage{
		inner:      inner,
		passphrase: []byte(passphrase),
	}, nil
}

// cipherFor returns the AEAD for salt, deriving it on first use.
// Must be called with mu held.
func (s *EncryptedStorage) cipherFor(salt string) (cipher.AEAD, error) {
	if s.aead != nil && s.salt == salt {
		return s.aead, nil
	}
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt: %v", ErrStoreCorrupted, err)
	}
	key, err := scrypt.Key(s.passphrase, rawSalt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	s.salt = salt
	s.aead = aead
	return aead, nil
}

// Get implements Storage.
func (s *EncryptedStorage) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	salt, ok, err := s.inner.Get(ctx, saltKey)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, fmt.Errorf("%w: missing salt", ErrStoreCorrupted)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	aead, err := s.cipherFor(salt)
	if err != nil {
		return "", false, err
	}
	plain, err := open(aead, key, sealed)
	if err != nil {
		return "", false, err
	}
	return string(plain), true, nil
}

// SetMany implements Storage. The salt is generated on the first write and
// persisted in the same batch.
func (s *EncryptedStorage) SetMany(ctx context.Context, kv map[string]string) error {
	salt, ok, err := s.inner.Get(ctx, saltKey)
	if err != nil {
		return err
	}

	batch := make(map[string]string, len(kv)+1)
	if !ok {
		raw := make([]byte, scryptSaltSz)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		salt = base64.StdEncoding.EncodeToString(raw)
		batch[saltKey] = salt
	}

	s.mu.Lock()
	aead, err := s.cipherFor(salt)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for k, v := range kv {
		sealed, err := seal(aead, k, []byte(v))
		if err != nil {
			s.mu.Unlock()
			return err
		}
		batch[k] = sealed
	}
	s.mu.Unlock()

	return s.inner.SetMany(ctx, batch)
}

// DeleteMany implements Storage. The salt is kept so remaining values stay
// readable.
func (s *EncryptedStorage) DeleteMany(ctx context.Context, keys ...string) error {
	return s.inner.DeleteMany(ctx, keys...)
}

func seal(aead cipher.AEAD, key string, plain []byte) (string, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, plain, []byte(key))
	return base64.StdEncoding.EncodeToString(out), nil
}

func open(aead cipher.AEAD, key, sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupted, key, err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: %s: short ciphertext", ErrStoreCorrupted, key)
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupted, key, err)
	}
	return plain, nil
}
