package tokenstore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/edukite/go-edukite-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceLength = 24

// record is the sealed on-disk shape.
type record struct {
	RefreshToken string `json:"refresh_token,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
}

// FileStore persists the refresh token and tenant id in a single file sealed
// with NaCl secretbox. Writes are atomic (temp file + rename).
type FileStore struct {
	path string
	key  [32]byte
	lock sync.Mutex
	log  zerolog.Logger
}

var _ Store = (*FileStore)(nil)

// FileStoreOption modifies a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the store logger. The default logger is a nop.
func WithLogger(log zerolog.Logger) FileStoreOption {
	return func(fs *FileStore) {
		fs.log = log
	}
}

// NewFileStore creates a sealed file store. encodedKey is a base64 encoded
// 32-byte key.
func NewFileStore(path, encodedKey string, options ...FileStoreOption) (*FileStore, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidStoreKey, "[NewFileStore] key is not valid base64")
	}
	if len(keyBytes) != 32 {
		return nil, errors.Wrapf(apperrors.ErrInvalidStoreKey, "[NewFileStore] key must be 32 bytes, got %d", len(keyBytes))
	}

	fs := &FileStore{
		path: path,
		log:  zerolog.Nop(),
	}
	copy(fs.key[:], keyBytes)

	for _, opt := range options {
		opt(fs)
	}
	return fs, nil
}

// GenerateKey returns a fresh base64 encoded store key.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", errors.Wrap(err, "[GenerateKey] rand.Read")
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func (fs *FileStore) StoreRefreshToken(token string) error {
	if token != "" && !ValidTokenFormat(token) {
		return errors.Wrap(apperrors.ErrInvalidTokenFormat, "[StoreRefreshToken] refused to persist")
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	rec, err := fs.load()
	if err != nil {
		return errors.Wrap(err, "[StoreRefreshToken] load")
	}
	rec.RefreshToken = token
	return fs.save(rec)
}

func (fs *FileStore) RefreshToken() (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	rec, err := fs.load()
	if err != nil {
		return "", errors.Wrap(err, "[RefreshToken] load")
	}
	if rec.RefreshToken == "" {
		return "", nil
	}
	if !ValidTokenFormat(rec.RefreshToken) {
		fs.log.Warn().Msg("purging invalid persisted refresh token")
		rec.RefreshToken = ""
		if err := fs.save(rec); err != nil {
			return "", errors.Wrap(err, "[RefreshToken] purge invalid token")
		}
		return "", nil
	}
	return rec.RefreshToken, nil
}

func (fs *FileStore) StoreTenantID(id string) error {
	if id != "" && !ValidTenantID(id) {
		return errors.Wrap(apperrors.ErrInvalidTenantID, "[StoreTenantID] refused to persist")
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	rec, err := fs.load()
	if err != nil {
		return errors.Wrap(err, "[StoreTenantID] load")
	}
	rec.TenantID = id
	return fs.save(rec)
}

func (fs *FileStore) TenantID() (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	rec, err := fs.load()
	if err != nil {
		return "", errors.Wrap(err, "[TenantID] load")
	}
	if rec.TenantID == "" {
		return "", nil
	}
	if !ValidTenantID(rec.TenantID) {
		fs.log.Warn().Msg("purging invalid persisted tenant id")
		rec.TenantID = ""
		if err := fs.save(rec); err != nil {
			return "", errors.Wrap(err, "[TenantID] purge invalid tenant id")
		}
		return "", nil
	}
	return rec.TenantID, nil
}

func (fs *FileStore) ClearAll() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[ClearAll] remove store file")
	}
	return nil
}

// load reads and opens the sealed record. A missing or undecryptable file
// yields an empty record: a store sealed with a different key is
// indistinguishable from tampering, so its contents are discarded.
func (fs *FileStore) load() (record, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return record{}, nil
	}
	if err != nil {
		return record{}, errors.Wrap(err, "read store file")
	}
	if len(data) < nonceLength {
		fs.log.Warn().Msg("token store file truncated, discarding")
		return record{}, nil
	}

	var nonce [nonceLength]byte
	copy(nonce[:], data[:nonceLength])

	plain, ok := secretbox.Open(nil, data[nonceLength:], &nonce, &fs.key)
	if !ok {
		fs.log.Warn().Msg("token store failed to open, discarding")
		return record{}, nil
	}

	var rec record
	if err := json.Unmarshal(plain, &rec); err != nil {
		fs.log.Warn().Msg("token store record unreadable, discarding")
		return record{}, nil
	}
	return rec, nil
}

func (fs *FileStore) save(rec record) error {
	plain, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}

	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "generate nonce")
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &fs.key)

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "create store directory")
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return errors.Wrap(err, "write store file")
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrap(err, "replace store file")
	}
	return nil
}
