package storefakes

import (
	"sync"

	"github.com/edukite/go-edukite-client/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store for tests. It applies the same format
// validation rules as the real stores and counts writes so tests can assert
// persistence behaviour.
type FakeStore struct {
	refreshToken string
	tenantID     string
	lock         sync.RWMutex

	WriteCount int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) StoreRefreshToken(token string) error {
	if token != "" && !tokenstore.ValidTokenFormat(token) {
		return tokenstore.ErrRejectedWrite
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.refreshToken = token
	fs.WriteCount++
	return nil
}

func (fs *FakeStore) RefreshToken() (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.refreshToken != "" && !tokenstore.ValidTokenFormat(fs.refreshToken) {
		fs.refreshToken = ""
		return "", nil
	}
	return fs.refreshToken, nil
}

func (fs *FakeStore) StoreTenantID(id string) error {
	if id != "" && !tokenstore.ValidTenantID(id) {
		return tokenstore.ErrRejectedWrite
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.tenantID = id
	fs.WriteCount++
	return nil
}

func (fs *FakeStore) TenantID() (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.tenantID != "" && !tokenstore.ValidTenantID(fs.tenantID) {
		fs.tenantID = ""
		return "", nil
	}
	return fs.tenantID, nil
}

func (fs *FakeStore) ClearAll() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.refreshToken = ""
	fs.tenantID = ""
	return nil
}

// Seed sets stored values directly, bypassing validation, so tests can stage
// invalid persisted state.
func (fs *FakeStore) Seed(refreshToken, tenantID string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.refreshToken = refreshToken
	fs.tenantID = tenantID
}
