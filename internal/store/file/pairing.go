package file

import (
	"github.com/nextlevelbuilder/chatgate/internal/pairing"
	"github.com/nextlevelbuilder/chatgate/internal/store"
)

// FilePairingStore wraps pairing.Service to implement store.PairingStore.
type FilePairingStore struct {
	svc *pairing.Service
}

func NewFilePairingStore(svc *pairing.Service) *FilePairingStore {
	return &FilePairingStore{svc: svc}
}

func (f *FilePairingStore) Get(user store.PlatformUser) (store.PairingState, error) {
	return f.svc.Get(user)
}

func (f *FilePairingStore) Set(user store.PlatformUser, state store.PairingState) error {
	return f.svc.Set(user, state)
}

func (f *FilePairingStore) Remove(user store.PlatformUser) error {
	return f.svc.Remove(user)
}

func (f *FilePairingStore) StorePendingCode(code, gatewayType string, expiresAt int64) error {
	return f.svc.StorePendingCode(code, gatewayType, expiresAt)
}

func (f *FilePairingStore) ConsumePendingCode(code string, now int64) (string, bool, error) {
	return f.svc.ConsumePendingCode(code, now)
}

func (f *FilePairingStore) GenerateCode() string {
	return f.svc.GenerateCode()
}

func (f *FilePairingStore) RequestPairing(userID, gatewayType, chatID, kind string) (string, error) {
	return f.svc.RequestPairing(userID, gatewayType, chatID, kind)
}

func (f *FilePairingStore) RemoveAllForPlatform(platform string) (int, error) {
	return f.svc.RemoveAllForPlatform(platform)
}

func (f *FilePairingStore) ListPairedUsers(platform string) ([]store.PairedUser, error) {
	return f.svc.ListPairedUsers(platform)
}
